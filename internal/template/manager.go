// Package template manages reusable shop layouts. Templates are stored
// relationally and fronted by a small LRU read cache: apply-template is on
// the interactive path and the same handful of templates gets applied over
// and over.
package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/repository"
	"github.com/stallwart/shopkeeper/internal/shop"
)

const cacheSize = 64

type Manager struct {
	repo  repository.Templates
	mgr   *shop.Manager
	cache *lru.Cache[uuid.UUID, *domain.ShopTemplate]
}

func NewManager(repo repository.Templates, mgr *shop.Manager) (*Manager, error) {
	cache, err := lru.New[uuid.UUID, *domain.ShopTemplate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	return &Manager{repo: repo, mgr: mgr, cache: cache}, nil
}

// Create validates and stores a new template.
func (m *Manager) Create(ctx context.Context, name, description, creator, category string, admin bool, items []domain.TemplateItem) (*domain.ShopTemplate, error) {
	tpl, err := domain.NewTemplate(name, description, creator, category, admin, items)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, tpl); err != nil {
		return nil, err
	}
	m.cache.Add(tpl.ID, tpl)
	return tpl, nil
}

// SnapshotFromShop captures a live shop's listings as a new template.
func (m *Manager) SnapshotFromShop(ctx context.Context, shopID uuid.UUID, name, creator, category string) (*domain.ShopTemplate, error) {
	src, err := m.mgr.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	tpl, err := domain.TemplateFromShop(src, name, creator, category)
	if err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, tpl); err != nil {
		return nil, err
	}
	m.cache.Add(tpl.ID, tpl)
	return tpl, nil
}

// Get resolves a template, serving from cache when possible.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*domain.ShopTemplate, error) {
	if tpl, ok := m.cache.Get(id); ok {
		return tpl, nil
	}
	tpl, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.cache.Add(id, tpl)
	return tpl, nil
}

// List returns all stored templates. Listing is rare, no caching.
func (m *Manager) List(ctx context.Context) ([]*domain.ShopTemplate, error) {
	return m.repo.List(ctx)
}

// Edit applies a new revision and bumps the version.
func (m *Manager) Edit(ctx context.Context, id uuid.UUID, name, description string, items []domain.TemplateItem) (*domain.ShopTemplate, error) {
	tpl, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tpl.Edit(name, description, items); err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, tpl); err != nil {
		return nil, err
	}
	m.cache.Add(id, tpl)
	return tpl, nil
}

// Delete removes a template from storage and the cache.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.Remove(id)
	return nil
}

// Instantiate creates a brand-new shop from a template: an admin shop when
// the template is flagged admin, otherwise a player shop for the given
// owner, stocked with fresh items from the template's listings. The shop
// is deleted again if stocking fails, so no partially filled shop survives.
func (m *Manager) Instantiate(ctx context.Context, templateID uuid.UUID, name, description string, loc domain.Location, owner uuid.UUID) (*domain.Shop, error) {
	tpl, err := m.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	var created *domain.Shop
	if tpl.Admin {
		created, err = m.mgr.CreateAdminShop(ctx, name, description, loc)
	} else {
		if owner == uuid.Nil {
			return nil, fmt.Errorf("%w: player shop template requires an owner", domain.ErrValidation)
		}
		created, err = m.mgr.CreatePlayerShop(ctx, name, description, loc, owner)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Apply(ctx, templateID, created.ID); err != nil {
		if delErr := m.mgr.DeleteShop(ctx, created.ID); delErr != nil {
			logger.FromContext(ctx).Error("Failed to remove shop after template stocking failed",
				"error", delErr, "shop_id", created.ID, "template_id", templateID)
		}
		return nil, err
	}

	return m.mgr.GetShop(ctx, created.ID)
}

// Apply stocks an existing shop from a template. Listings are appended to
// whatever the shop already carries; item ids are always fresh.
func (m *Manager) Apply(ctx context.Context, templateID, shopID uuid.UUID) error {
	tpl, err := m.Get(ctx, templateID)
	if err != nil {
		return err
	}
	currencies := m.mgr.Currencies()
	log := logger.FromContext(ctx)
	return m.mgr.Mutate(ctx, shopID, func(s *domain.Shop) error {
		for _, ti := range tpl.Items {
			item, err := domain.NewShopItem(ti.Stack, ti.BuyPrice, ti.Currency, ti.Stock, currencies)
			if err != nil {
				return fmt.Errorf("template %s has an invalid listing: %w", tpl.Name, err)
			}
			if ti.SellPrice != nil {
				if err := item.SetSellPrice(*ti.SellPrice); err != nil {
					return err
				}
			}
			if err := s.AddItem(item); err != nil {
				return err
			}
		}
		log.Info("Applied template to shop", "template_id", tpl.ID, "shop_id", s.ID, "items", len(tpl.Items))
		return nil
	})
}
