package config

import "time"

type LogConfig struct {
	Dir    string `mapstructure:"dir"`
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"` // "text" or "json"
}

type ClientConfig struct {
	Host string `mapstructure:"host" validate:"required,hostname_rfc1123|ip"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	// "tcp" for length prefixed frames, "websocket" for one binary message per frame
	Transport     string `mapstructure:"transport" validate:"required,oneof=tcp websocket"`
	WebSocketPath string `mapstructure:"websocket_path" validate:"required_if=Transport websocket"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	ConnectRetries uint          `mapstructure:"connect_retries" validate:"min=1,max=20"`
	DNSTimeout     time.Duration `mapstructure:"dns_timeout" validate:"gt=0"`

	// A service that accepts no data for this long counts as disconnected.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`

	// Zero disables request expiry. Requests are then only resolved by a
	// response or by cancellation when the connection goes away.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	MaxFrameSize   int           `mapstructure:"max_frame_size" validate:"min=64,max=67108864"`

	// Panic on request table invariant violations instead of logging them.
	StrictInvariants bool `mapstructure:"strict_invariants"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

type ConsoleConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	FPSReportInterval time.Duration `mapstructure:"fps_report_interval" validate:"gt=0"`
	ControllerID      int           `mapstructure:"controller_id" validate:"min=0"`
}

type ServiceConfig struct {
	Listen            string        `mapstructure:"listen" validate:"required,hostname_port"`
	WebSocketListen   string        `mapstructure:"websocket_listen" validate:"omitempty,hostname_port"`
	Controllers       int           `mapstructure:"controllers" validate:"min=0,max=16"`
	DataFrameInterval time.Duration `mapstructure:"data_frame_interval" validate:"gt=0"`
}

type Config struct {
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Console ConsoleConfig `mapstructure:"console"`
	Service ServiceConfig `mapstructure:"service"`
}

var DefaultConfig = Config{
	Client: ClientConfig{
		Host:           "localhost",
		Port:           9512,
		Transport:      "tcp",
		WebSocketPath:  "/psmove",
		ConnectTimeout: 5 * time.Second,
		ConnectRetries: 3,
		DNSTimeout:     5 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxFrameSize:   1 << 20,
	},
	Log: LogConfig{
		Level:  "info",
		Format: "text",
	},
	Metrics: MetricsConfig{
		Listen: "127.0.0.1:9513",
	},
	Console: ConsoleConfig{
		PollInterval:      time.Millisecond,
		FPSReportInterval: 500 * time.Millisecond,
	},
	Service: ServiceConfig{
		Listen:            "127.0.0.1:9512",
		Controllers:       1,
		DataFrameInterval: 16 * time.Millisecond,
	},
}
