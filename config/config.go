/*
	friendlybots - verified search engine crawler admission by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package config

import (
	"time"
)

// Config contains all configurable bits and pieces the friendlybots application needs
// The configuration gets passed on to all parts of the application that need to access it
type Config struct {
	APIAddress     string
	DNSServer      string
	DNSTimeout     time.Duration
	CacheBackend   string
	CacheTTL       time.Duration
	BadgerPath     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	VendorsTOML    string
	SocketFile     string
	NatsAddr       string
	NatsPort       int
	NatsUser       string
	NatsPassword   string
	WindowSize     time.Duration
	NumWindows     int
	KeepDecisions  int
	LogLevel       string
	LogMemoryStats bool
	LogReplay      string
	LogFormat      string
}

// Cache backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Default returns a configuration with the same defaults the command line flags use
func Default() *Config {
	return &Config{
		APIAddress:    "127.0.0.1:8090",
		DNSServer:     "8.8.8.8:53",
		DNSTimeout:    2 * time.Second,
		CacheBackend:  BackendMemory,
		CacheTTL:      0,
		BadgerPath:    "./badger",
		RedisAddr:     "127.0.0.1:6379",
		WindowSize:    time.Minute,
		NumWindows:    60,
		KeepDecisions: 50,
		NatsAddr:      "127.0.0.1",
		LogLevel:      "info",
	}
}
