package conf

import "time"

type Config struct {
	Server Server `toml:"server" envPrefix:"SERVER_"`
	Stream Stream `toml:"stream" envPrefix:"STREAM_"`
	GPU    GPU    `toml:"gpu" envPrefix:"GPU_"`
	Docker Docker `toml:"docker" envPrefix:"DOCKER_"`
	Tunnel Tunnel `toml:"tunnel" envPrefix:"TUNNEL_"`
	Log    Log    `toml:"log" envPrefix:"LOG_"`
	Web    Web    `toml:"web" envPrefix:"WEB_"`
}

type Server struct {
	Host string `toml:"host" env:"HOST"`
	Port int    `toml:"port" env:"PORT"`
}

// Stream controls the per-connection telemetry push.
type Stream struct {
	StartupDelay time.Duration `toml:"startup_delay" env:"STARTUP_DELAY"`
	Interval     time.Duration `toml:"interval" env:"INTERVAL"`
	CPUWindow    time.Duration `toml:"cpu_window" env:"CPU_WINDOW"`
	DiskPath     string        `toml:"disk_path" env:"DISK_PATH"`
}

type GPU struct {
	Command string `toml:"command" env:"COMMAND"`
}

// Docker.Host empty means the client reads DOCKER_HOST and friends.
type Docker struct {
	Host string `toml:"host" env:"HOST"`
}

type Tunnel struct {
	Enabled       bool          `toml:"enabled" env:"ENABLED"`
	Authtoken     string        `toml:"authtoken" env:"AUTHTOKEN"`
	NotifyURL     string        `toml:"notify_url" env:"NOTIFY_URL"`
	NotifyTimeout time.Duration `toml:"notify_timeout" env:"NOTIFY_TIMEOUT"`
}

type Log struct {
	Level string `toml:"level" env:"LEVEL"`
}

type Web struct {
	RootPath string `toml:"root_path" env:"ROOT_PATH"`
}
