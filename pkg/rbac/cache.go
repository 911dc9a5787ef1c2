package rbac

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/folio-cms/folio/pkg/observability"
)

const catalogCacheKey = "__catalog"

// Cache is a short-TTL read cache for role, group and catalog lookups.
// Every write through the Store busts the affected entry synchronously, so
// the stale window never outlives the write that caused it.
type Cache struct {
	roles   *expirable.LRU[string, *Role]
	groups  *expirable.LRU[string, *Group]
	catalog *expirable.LRU[string, PermissionSet]
	metrics *observability.Metrics
}

// NewCache creates a cache. metrics may be nil.
func NewCache(size int, ttl time.Duration, metrics *observability.Metrics) *Cache {
	return &Cache{
		roles:   expirable.NewLRU[string, *Role](size, nil, ttl),
		groups:  expirable.NewLRU[string, *Group](size, nil, ttl),
		catalog: expirable.NewLRU[string, PermissionSet](1, nil, ttl),
		metrics: metrics,
	}
}

func (c *Cache) GetRole(name string) (*Role, bool) {
	role, ok := c.roles.Get(name)
	c.record("role", ok)
	return role, ok
}

func (c *Cache) PutRole(role *Role) {
	c.roles.Add(role.Name, role)
}

func (c *Cache) RemoveRole(name string) {
	c.roles.Remove(name)
}

func (c *Cache) GetGroup(slug string) (*Group, bool) {
	group, ok := c.groups.Get(slug)
	c.record("group", ok)
	return group, ok
}

func (c *Cache) PutGroup(group *Group) {
	c.groups.Add(group.Slug, group)
}

func (c *Cache) RemoveGroup(slug string) {
	c.groups.Remove(slug)
}

func (c *Cache) GetCatalog() (PermissionSet, bool) {
	set, ok := c.catalog.Get(catalogCacheKey)
	c.record("catalog", ok)
	return set, ok
}

func (c *Cache) PutCatalog(set PermissionSet) {
	c.catalog.Add(catalogCacheKey, set)
}

func (c *Cache) RemoveCatalog() {
	c.catalog.Remove(catalogCacheKey)
}

// Purge drops all cached entries.
func (c *Cache) Purge() {
	c.roles.Purge()
	c.groups.Purge()
	c.catalog.Purge()
}

func (c *Cache) record(kind string, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
	}
}
