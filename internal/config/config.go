package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override recognised by Load.
const EnvPrefix = "PARKARENA"

const (
	// DefaultAddr is the default TCP address the arena host listens on.
	DefaultAddr = ":7451"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 64 << 10
	// DefaultMaxClients bounds concurrent WebSocket viewers. Zero disables the limit.
	DefaultMaxClients = 64
	// DefaultBroadcastHz sets how often session snapshots are pushed to viewers.
	DefaultBroadcastHz = 20.0
	// DefaultEventRetention is how many events reconnecting clients can catch up on.
	DefaultEventRetention = 256
	// DefaultTimeSyncInterval spaces clock samples sent to clients.
	DefaultTimeSyncInterval = 5 * time.Second

	// DefaultTickHz is the fixed simulation frequency.
	DefaultTickHz = 60.0

	// DefaultVehicle selects the vehicle a fresh session starts with.
	DefaultVehicle = "car"
	// DefaultCrashDelay is how long a crash stays on screen before the automatic reset.
	DefaultCrashDelay = 2 * time.Second
	// DefaultSuccessDelay is how long a success stays on screen before the automatic reset.
	DefaultSuccessDelay = 3 * time.Second
	// DefaultZoomMin is the closest the camera may get.
	DefaultZoomMin = -3
	// DefaultZoomMax is the farthest the camera may get.
	DefaultZoomMax = 15
	// DefaultCameraModes lists the camera cycle order.
	DefaultCameraModes = "locked,chase,cinematic"

	// DefaultAirObstacles is the number of floating spheres scattered for the plane.
	DefaultAirObstacles = 10

	// DefaultInputMaxAge drops remote control frames older than this.
	DefaultInputMaxAge = 500 * time.Millisecond
	// DefaultInputMinInterval throttles remote control frames per client.
	DefaultInputMinInterval = 5 * time.Millisecond
	// DefaultCommandWindow is the sliding window used to rate limit discrete commands.
	DefaultCommandWindow = time.Second
	// DefaultCommandBurst is how many commands a client may send per window.
	DefaultCommandBurst = 10

	// DefaultReplayDirectory is where replay bundles are written when capture is enabled.
	DefaultReplayDirectory = "replays"
	// DefaultFlushWindow bounds how frequently replay flush requests may be made.
	DefaultFlushWindow = time.Minute
	// DefaultFlushBurst sets how many replay flush requests may be made per window.
	DefaultFlushBurst = 1
	// DefaultReplayMaxBundles caps how many replay bundles are kept on disk.
	DefaultReplayMaxBundles = 20
	// DefaultReplayMaxAge prunes bundles older than a week.
	DefaultReplayMaxAge = 7 * 24 * time.Hour
	// DefaultReplaySweepInterval spaces retention sweeps.
	DefaultReplaySweepInterval = time.Hour

	// DefaultLogLevel controls verbosity for host logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "parkarena.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 50
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 5
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// ErrInvalid wraps every validation failure reported by Load.
var ErrInvalid = errors.New("invalid configuration")

// Config captures all runtime tunables for the arena host.
type Config struct {
	Address          string
	AllowedOrigins   []string
	MaxPayloadBytes  int64
	PingInterval     time.Duration
	MaxClients       int
	BroadcastHz      float64
	EventRetention   int
	TimeSyncInterval time.Duration
	AdminToken       string
	DriverSecret     string
	GRPCAddr         string
	GRPCSharedSecret string

	TickHz  float64
	Session SessionConfig
	Ground  GroundConfig
	Air     AirConfig
	Arena   ArenaConfig
	Input   InputConfig
	Replay  ReplayConfig
	Logging LoggingConfig
}

// SessionConfig drives the session controller.
type SessionConfig struct {
	Vehicle      string
	CrashDelay   time.Duration
	SuccessDelay time.Duration
	ZoomMin      int
	ZoomMax      int
	CameraModes  []string
	RequireStart bool
	Seed         int64
}

// GroundConfig overrides car tunables. Zero values keep the built-in defaults.
type GroundConfig struct {
	Accel        float64
	ReverseAccel float64
	MaxSpeed     float64
	MaxReverse   float64
	Friction     float64
	SteerRate    float64
}

// AirConfig overrides plane tunables. Zero values keep the built-in defaults.
type AirConfig struct {
	Accel    float64
	MaxSpeed float64
	Friction float64
	TurnRate float64
}

// ArenaConfig shapes obstacle generation.
type ArenaConfig struct {
	ClosedBack   bool
	Trees        int
	AICars       int
	AirObstacles int
}

// InputConfig gates remote control frames and commands.
type InputConfig struct {
	MaxAge        time.Duration
	MinInterval   time.Duration
	CommandWindow time.Duration
	CommandBurst  int
}

// ReplayConfig controls diagnostic replay capture.
type ReplayConfig struct {
	Enabled       bool
	Directory     string
	FlushWindow   time.Duration
	FlushBurst    int
	MaxBundles    int
	MaxAge        time.Duration
	SweepInterval time.Duration
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level       string
	Path        string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
	Console     bool
	GraylogAddr string
}

// Load resolves the configuration from defaults, an optional config file and
// PARKARENA_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	//1.- Merge the optional file before reading keys so env still wins.
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	l := &loader{v: v}
	cfg := &Config{
		Address:          l.str("server.address"),
		AllowedOrigins:   parseList(l.str("server.allowed_origins")),
		MaxPayloadBytes:  int64(l.integer("server.max_payload_bytes", 1)),
		PingInterval:     l.duration("server.ping_interval", false),
		MaxClients:       l.integer("server.max_clients", 0),
		BroadcastHz:      l.float("server.broadcast_hz", true),
		EventRetention:   l.integer("server.event_retention", 1),
		TimeSyncInterval: l.duration("server.time_sync_interval", false),
		AdminToken:       l.str("server.admin_token"),
		DriverSecret:     l.str("server.driver_secret"),
		GRPCAddr:         l.str("grpc.address"),
		GRPCSharedSecret: l.str("grpc.shared_secret"),
		TickHz:           l.float("loop.tick_hz", true),
		Session: SessionConfig{
			Vehicle:      strings.ToLower(l.str("session.vehicle")),
			CrashDelay:   l.duration("session.crash_delay", false),
			SuccessDelay: l.duration("session.success_delay", false),
			ZoomMin:      int(l.int64("session.zoom_min")),
			ZoomMax:      int(l.int64("session.zoom_max")),
			CameraModes:  parseList(l.str("session.camera_modes")),
			RequireStart: l.boolean("session.require_start"),
			Seed:         l.int64("session.seed"),
		},
		Ground: GroundConfig{
			Accel:        l.float("ground.accel", false),
			ReverseAccel: l.float("ground.reverse_accel", false),
			MaxSpeed:     l.float("ground.max_speed", false),
			MaxReverse:   l.float("ground.max_reverse", false),
			Friction:     l.float("ground.friction", false),
			SteerRate:    l.float("ground.steer_rate", false),
		},
		Air: AirConfig{
			Accel:    l.float("air.accel", false),
			MaxSpeed: l.float("air.max_speed", false),
			Friction: l.float("air.friction", false),
			TurnRate: l.float("air.turn_rate", false),
		},
		Arena: ArenaConfig{
			ClosedBack:   l.boolean("arena.closed_back"),
			Trees:        l.integer("arena.trees", 0),
			AICars:       l.integer("arena.ai_cars", 0),
			AirObstacles: l.integer("arena.air_obstacles", 0),
		},
		Input: InputConfig{
			MaxAge:        l.duration("input.max_age", true),
			MinInterval:   l.duration("input.min_interval", true),
			CommandWindow: l.duration("input.command_window", false),
			CommandBurst:  l.integer("input.command_burst", 1),
		},
		Replay: ReplayConfig{
			Enabled:       l.boolean("replay.enabled"),
			Directory:     l.str("replay.directory"),
			FlushWindow:   l.duration("replay.flush_window", false),
			FlushBurst:    l.integer("replay.flush_burst", 1),
			MaxBundles:    l.integer("replay.max_bundles", 0),
			MaxAge:        l.duration("replay.max_age", false),
			SweepInterval: l.duration("replay.sweep_interval", true),
		},
		Logging: LoggingConfig{
			Level:       l.str("log.level"),
			Path:        l.str("log.path"),
			MaxSizeMB:   l.integer("log.max_size_mb", 1),
			MaxBackups:  l.integer("log.max_backups", 0),
			MaxAgeDays:  l.integer("log.max_age_days", 0),
			Compress:    l.boolean("log.compress"),
			Console:     l.boolean("log.console"),
			GraylogAddr: l.str("log.graylog_address"),
		},
	}

	//2.- Cross-field checks run after every key parsed so all problems surface together.
	switch cfg.Session.Vehicle {
	case "car", "plane":
	default:
		l.problems = append(l.problems, fmt.Sprintf("%s must be car or plane, got %q", envName("session.vehicle"), cfg.Session.Vehicle))
	}
	if cfg.Session.ZoomMin > cfg.Session.ZoomMax {
		l.problems = append(l.problems, fmt.Sprintf("%s must not exceed %s", envName("session.zoom_min"), envName("session.zoom_max")))
	}
	if len(cfg.Session.CameraModes) == 0 {
		l.problems = append(l.problems, fmt.Sprintf("%s must list at least one camera mode", envName("session.camera_modes")))
	}
	if cfg.Replay.Enabled && strings.TrimSpace(cfg.Replay.Directory) == "" {
		l.problems = append(l.problems, fmt.Sprintf("%s is required when replay capture is enabled", envName("replay.directory")))
	}

	if len(l.problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(l.problems, "; "))
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", DefaultAddr)
	v.SetDefault("server.allowed_origins", "")
	v.SetDefault("server.max_payload_bytes", strconv.FormatInt(DefaultMaxPayloadBytes, 10))
	v.SetDefault("server.ping_interval", DefaultPingInterval.String())
	v.SetDefault("server.max_clients", strconv.Itoa(DefaultMaxClients))
	v.SetDefault("server.broadcast_hz", strconv.FormatFloat(DefaultBroadcastHz, 'f', -1, 64))
	v.SetDefault("server.event_retention", strconv.Itoa(DefaultEventRetention))
	v.SetDefault("server.time_sync_interval", DefaultTimeSyncInterval.String())
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.driver_secret", "")
	v.SetDefault("grpc.address", "")
	v.SetDefault("grpc.shared_secret", "")

	v.SetDefault("loop.tick_hz", strconv.FormatFloat(DefaultTickHz, 'f', -1, 64))

	v.SetDefault("session.vehicle", DefaultVehicle)
	v.SetDefault("session.crash_delay", DefaultCrashDelay.String())
	v.SetDefault("session.success_delay", DefaultSuccessDelay.String())
	v.SetDefault("session.zoom_min", strconv.Itoa(DefaultZoomMin))
	v.SetDefault("session.zoom_max", strconv.Itoa(DefaultZoomMax))
	v.SetDefault("session.camera_modes", DefaultCameraModes)
	v.SetDefault("session.require_start", "false")
	v.SetDefault("session.seed", "0")

	for _, key := range []string{"ground.accel", "ground.reverse_accel", "ground.max_speed", "ground.max_reverse", "ground.friction", "ground.steer_rate", "air.accel", "air.max_speed", "air.friction", "air.turn_rate"} {
		v.SetDefault(key, "0")
	}

	v.SetDefault("arena.closed_back", "false")
	v.SetDefault("arena.trees", "0")
	v.SetDefault("arena.ai_cars", "0")
	v.SetDefault("arena.air_obstacles", strconv.Itoa(DefaultAirObstacles))

	v.SetDefault("input.max_age", DefaultInputMaxAge.String())
	v.SetDefault("input.min_interval", DefaultInputMinInterval.String())
	v.SetDefault("input.command_window", DefaultCommandWindow.String())
	v.SetDefault("input.command_burst", strconv.Itoa(DefaultCommandBurst))

	v.SetDefault("replay.enabled", "false")
	v.SetDefault("replay.directory", DefaultReplayDirectory)
	v.SetDefault("replay.flush_window", DefaultFlushWindow.String())
	v.SetDefault("replay.flush_burst", strconv.Itoa(DefaultFlushBurst))
	v.SetDefault("replay.max_bundles", strconv.Itoa(DefaultReplayMaxBundles))
	v.SetDefault("replay.max_age", DefaultReplayMaxAge.String())
	v.SetDefault("replay.sweep_interval", DefaultReplaySweepInterval.String())

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.path", DefaultLogPath)
	v.SetDefault("log.max_size_mb", strconv.Itoa(DefaultLogMaxSizeMB))
	v.SetDefault("log.max_backups", strconv.Itoa(DefaultLogMaxBackups))
	v.SetDefault("log.max_age_days", strconv.Itoa(DefaultLogMaxAgeDays))
	v.SetDefault("log.compress", strconv.FormatBool(DefaultLogCompress))
	v.SetDefault("log.console", "true")
	v.SetDefault("log.graylog_address", "")
}

// loader reads raw string values out of viper and records every parse failure.
type loader struct {
	v        *viper.Viper
	problems []string
}

func (l *loader) str(key string) string {
	return strings.TrimSpace(l.v.GetString(key))
}

func (l *loader) duration(key string, allowZero bool) time.Duration {
	raw := l.str(key)
	value, err := time.ParseDuration(raw)
	if err != nil || value < 0 || (!allowZero && value == 0) {
		l.fail(key, "a positive duration", raw)
		return 0
	}
	return value
}

func (l *loader) integer(key string, minimum int) int {
	raw := l.str(key)
	value, err := strconv.Atoi(raw)
	if err != nil || value < minimum {
		l.fail(key, fmt.Sprintf("an integer >= %d", minimum), raw)
		return 0
	}
	return value
}

func (l *loader) int64(key string) int64 {
	raw := l.str(key)
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		l.fail(key, "an integer", raw)
		return 0
	}
	return value
}

func (l *loader) float(key string, positive bool) float64 {
	raw := l.str(key)
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || (positive && value <= 0) {
		expected := "a number"
		if positive {
			expected = "a positive number"
		}
		l.fail(key, expected, raw)
		return 0
	}
	return value
}

func (l *loader) boolean(key string) bool {
	raw := l.str(key)
	value, err := strconv.ParseBool(raw)
	if err != nil {
		l.fail(key, "a boolean value", raw)
		return false
	}
	return value
}

func (l *loader) fail(key, expected, raw string) {
	l.problems = append(l.problems, fmt.Sprintf("%s must be %s, got %q", envName(key), expected, raw))
}

// envName maps a dotted viper key onto its environment variable.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
