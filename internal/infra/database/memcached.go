package database

import (
	"github.com/bradfitz/gomemcache/memcache"

	"github.com/givestation/youbuidl-sync/internal/config"
)

func NewMemcached(conf config.Server) *memcache.Client {
	return memcache.New(conf.MemcachedAddr)
}
