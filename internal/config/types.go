// Package config loads and validates the YAML server and stream
// configuration files the gateway is started with, and watches config
// files for changes. The mux config tree is read by internal/muxcfg.
package config

// GeneralConfig is the server config's "general" section.
type GeneralConfig struct {
	LogDir     string `yaml:"logdir"`
	MaxLogSize int    `yaml:"max_log_size" validate:"min=0"`
	QueueLimit int    `yaml:"queuelimit" validate:"required,min=1"`
	LogFormat  string `yaml:"log_format" validate:"omitempty,oneof=json text"`
}

// DABConfig is the server config's "dab" section: binary paths and the
// on-disk location of the mux/mod/stream config files it manages.
type DABConfig struct {
	EncoderBinary    string `yaml:"encoder_binary" validate:"required"`
	PADEncoderBinary string `yaml:"pad_encoder_binary"`
	MuxConfigPath    string `yaml:"mux_config_path" validate:"required"`
	ModConfigPath    string `yaml:"mod_config_path"`
	MuxControlSocket string `yaml:"mux_control_socket" validate:"required"`
	StreamConfigPath string `yaml:"stream_config_path" validate:"required"`
	FIFODir          string `yaml:"fifo_dir" validate:"required"`
}

// CAPConfig is the server config's "cap" section.
type CAPConfig struct {
	Host             string `yaml:"host" validate:"required"`
	Port             int    `yaml:"port" validate:"required,min=1,max=65535"`
	IdentifierPrefix string `yaml:"identifier_prefix" validate:"required"`
	Sender           string `yaml:"sender" validate:"required"`
	StrictParsing    bool   `yaml:"strict_parsing"`
}

// WarningConfig is the server config's "warning" section: which edge
// actions are enabled and the Alarm-announcement service identity.
type WarningConfig struct {
	AlarmEnabled     bool   `yaml:"alarm"`
	ReplaceEnabled   bool   `yaml:"replace"`
	DataEnabled      bool   `yaml:"data"`
	AnnouncementName string `yaml:"announcement_name" validate:"required"`
	Label            string `yaml:"label" validate:"required"`
	ShortLabel       string `yaml:"shortLabel" validate:"required,max=8"`
	PTY              int    `yaml:"pty" validate:"min=0,max=31"`
}

// ServerConfig is the top-level decoded server config tree.
type ServerConfig struct {
	General GeneralConfig `yaml:"general" validate:"required"`
	DAB     DABConfig     `yaml:"dab" validate:"required"`
	CAP     CAPConfig     `yaml:"cap" validate:"required"`
	Warning WarningConfig `yaml:"warning" validate:"required"`
}

// StreamEntry is one subchannel's decoded stream config, mirroring the
// flat keys spec.md §6 describes for the stream config file, expressed
// as YAML fields instead of an INI section.
type StreamEntry struct {
	OutputKind        string `yaml:"output_type" validate:"required,oneof=dab_audio dab_plus_audio packet_data"`
	InputKind         string `yaml:"input_type" validate:"required,oneof=file fifo gst_uri"`
	InputLocation     string `yaml:"input" validate:"required"`
	BitrateKbps       int    `yaml:"bitrate" validate:"required,min=8,max=192,step8"`
	ProtectionProfile string `yaml:"protection_profile"`
	ProtectionLevel   int    `yaml:"protection"`
	PADEnabled        bool   `yaml:"dls_enable"`
	PADLength         int    `yaml:"pad_length"`
	PacketAddress     uint16 `yaml:"packet_address"`
}

// StreamConfig is the decoded stream config file: one entry per
// subchannel, keyed by subchannel name.
type StreamConfig map[string]StreamEntry
