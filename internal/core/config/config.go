package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type GeoServer struct {
	URL       string
	Workspace string
	Username  string
	Password  string
}

// Datastore holds the PostGIS connection parameters GeoServer is given when
// the layers are published through the REST API.
type Datastore struct {
	Name     string
	Host     string
	Port     int
	Database string
	Schema   string
	User     string
	Password string
}

type SyncCfg struct {
	Enabled         bool
	Workers         int
	Queue           int
	Delay           time.Duration
	Timeout         time.Duration
	ReplaceOnUpdate bool
	LedgerSize      int
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	// Consume turns on the listener that invalidates the local cache on
	// changes announced by other instances.
	Consume bool
	GroupID string
	// Source tags published events so the listener can skip its own.
	Source string
}

// RedisPool tunes the response cache client; zero values keep the client
// defaults.
type RedisPool struct {
	Size         int
	MinIdle      int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	DBPath     string
	RedisAddr  string
	RedisPool  RedisPool
	CacheTTL   time.Duration
	H3Res      int
	LayersFile string
	GeoServer  GeoServer
	Datastore  Datastore
	Sync       SyncCfg
	Events     EventsCfg
}

// Defaults registers every key with its default so that AutomaticEnv lookups
// and flag bindings resolve through the same names.
func Defaults(v *viper.Viper) {
	v.SetDefault("addr", ":8090")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)
	v.SetDefault("db_path", "geosync.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_pool_size", 16)
	v.SetDefault("redis_min_idle_conns", 2)
	v.SetDefault("redis_dial_timeout", 2*time.Second)
	v.SetDefault("redis_read_timeout", time.Second)
	v.SetDefault("redis_write_timeout", time.Second)
	v.SetDefault("cache_ttl", 60*time.Second)
	v.SetDefault("h3_res", 8)
	v.SetDefault("layers_file", "")

	v.SetDefault("geoserver_url", "http://localhost:8080/geoserver")
	v.SetDefault("geoserver_workspace", "simple_map")
	v.SetDefault("geoserver_username", "admin")
	v.SetDefault("geoserver_password", "geoserver")

	v.SetDefault("datastore_name", "postgis")
	v.SetDefault("datastore_host", "localhost")
	v.SetDefault("datastore_port", 5432)
	v.SetDefault("datastore_database", "gisdb")
	v.SetDefault("datastore_schema", "public")
	v.SetDefault("datastore_user", "postgres")
	v.SetDefault("datastore_password", "postgres")

	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_workers", 4)
	v.SetDefault("sync_queue", 256)
	v.SetDefault("sync_delay", time.Second)
	v.SetDefault("sync_timeout", 30*time.Second)
	v.SetDefault("sync_replace_on_update", false)
	v.SetDefault("sync_ledger_size", 512)

	v.SetDefault("events_enabled", false)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "geosync-changes")
	v.SetDefault("events_consume", false)
	v.SetDefault("kafka_group_id", "geosync-cache")
	v.SetDefault("instance_id", "")
}

// New returns a viper instance reading the environment with defaults applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	Defaults(v)
	return v
}

func Load(v *viper.Viper) Config {
	res := v.GetInt("h3_res")
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	workers := v.GetInt("sync_workers")
	if workers < 1 {
		workers = 1
	}
	queue := v.GetInt("sync_queue")
	if queue < 0 {
		queue = 0
	}

	return Config{
		Addr:       v.GetString("addr"),
		LogLevel:   v.GetString("log_level"),
		LogConsole: v.GetBool("log_console"),
		DBPath:     v.GetString("db_path"),
		RedisAddr:  strings.TrimSpace(v.GetString("redis_addr")),
		RedisPool: RedisPool{
			Size:         v.GetInt("redis_pool_size"),
			MinIdle:      v.GetInt("redis_min_idle_conns"),
			DialTimeout:  v.GetDuration("redis_dial_timeout"),
			ReadTimeout:  v.GetDuration("redis_read_timeout"),
			WriteTimeout: v.GetDuration("redis_write_timeout"),
		},
		CacheTTL:   v.GetDuration("cache_ttl"),
		H3Res:      res,
		LayersFile: v.GetString("layers_file"),
		GeoServer: GeoServer{
			URL:       strings.TrimRight(v.GetString("geoserver_url"), "/"),
			Workspace: v.GetString("geoserver_workspace"),
			Username:  v.GetString("geoserver_username"),
			Password:  v.GetString("geoserver_password"),
		},
		Datastore: Datastore{
			Name:     v.GetString("datastore_name"),
			Host:     v.GetString("datastore_host"),
			Port:     v.GetInt("datastore_port"),
			Database: v.GetString("datastore_database"),
			Schema:   v.GetString("datastore_schema"),
			User:     v.GetString("datastore_user"),
			Password: v.GetString("datastore_password"),
		},
		Sync: SyncCfg{
			Enabled:         v.GetBool("sync_enabled"),
			Workers:         workers,
			Queue:           queue,
			Delay:           v.GetDuration("sync_delay"),
			Timeout:         v.GetDuration("sync_timeout"),
			ReplaceOnUpdate: v.GetBool("sync_replace_on_update"),
			LedgerSize:      v.GetInt("sync_ledger_size"),
		},
		Events: EventsCfg{
			Enabled: v.GetBool("events_enabled"),
			Brokers: strings.TrimSpace(v.GetString("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
			Consume: v.GetBool("events_consume"),
			GroupID: v.GetString("kafka_group_id"),
			Source:  strings.TrimSpace(v.GetString("instance_id")),
		},
	}
}

// BrokerList splits the comma separated broker list, skipping blanks.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
