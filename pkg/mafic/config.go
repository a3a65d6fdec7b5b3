package mafic

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the port audio servers listen on out of the box.
	DefaultPort = 2333
	// DefaultTimeout bounds REST calls and the wait for a node to become
	// ready.
	DefaultTimeout = 10 * time.Second
)

// NodeConfig describes one audio server. Regions and ShardIDs are
// placement preferences; leaving them nil makes the node serve every
// region or shard.
type NodeConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Label    string `yaml:"label"`
	Password string `yaml:"password"`
	Secure   bool   `yaml:"secure"`

	Regions  []string `yaml:"regions"`
	ShardIDs []int    `yaml:"shard_ids"`

	// ResumeKey identifies our session to v3 servers across a short
	// disconnect. Generated when empty.
	ResumeKey string `yaml:"resume_key"`
	// ResumingSessionID resumes a previous v4 session.
	ResumingSessionID string `yaml:"resuming_session_id"`

	Timeout time.Duration `yaml:"timeout"`
}

func (c *NodeConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Label == "" {
		c.Label = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate returns a list of problems with the config, empty when it is
// usable.
func (c NodeConfig) Validate() []string {
	var problems []string
	if c.Host == "" {
		problems = append(problems, "host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d is out of range", c.Port))
	}
	if c.Password == "" {
		problems = append(problems, "password is required")
	}
	for _, id := range c.ShardIDs {
		if id < 0 {
			problems = append(problems, fmt.Sprintf("shard id %d is negative", id))
		}
	}
	return problems
}

// NodeConfigFromEnv builds a NodeConfig from MAFIC_* environment
// variables, loading a .env file first if one exists.
func NodeConfigFromEnv() NodeConfig {
	_ = godotenv.Load()

	return NodeConfig{
		Host:              getEnv("MAFIC_HOST", "localhost"),
		Port:              getEnvInt("MAFIC_PORT", DefaultPort),
		Label:             getEnv("MAFIC_LABEL", ""),
		Password:          getEnv("MAFIC_PASSWORD", ""),
		Secure:            getEnvBool("MAFIC_SECURE", false),
		Regions:           getEnvList("MAFIC_REGIONS"),
		ShardIDs:          getEnvInts("MAFIC_SHARD_IDS"),
		ResumeKey:         getEnv("MAFIC_RESUME_KEY", ""),
		ResumingSessionID: getEnv("MAFIC_SESSION_ID", ""),
		Timeout:           getEnvDuration("MAFIC_TIMEOUT", DefaultTimeout),
	}
}

// FleetConfig is a YAML file describing a whole node fleet.
type FleetConfig struct {
	Nodes []NodeConfig `yaml:"nodes"`
}

// LoadFleetConfig reads and validates a fleet config file.
func LoadFleetConfig(path string) (*FleetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(err, ErrCodeConfigInvalid).AddDetail("path", path)
	}

	var fleet FleetConfig
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, WrapError(err, ErrCodeConfigInvalid).AddDetail("path", path)
	}
	if len(fleet.Nodes) == 0 {
		return nil, NewMaficError("fleet config has no nodes", ErrCodeConfigInvalid).
			AddDetail("path", path)
	}

	seen := make(map[string]bool, len(fleet.Nodes))
	for i := range fleet.Nodes {
		node := &fleet.Nodes[i]
		node.applyDefaults()
		if problems := node.Validate(); len(problems) > 0 {
			return nil, NewMaficError("invalid node in fleet config", ErrCodeConfigInvalid).
				AddDetail("label", node.Label).
				AddDetail("problems", problems)
		}
		if seen[node.Label] {
			return nil, NewMaficError("duplicate node label in fleet config", ErrCodeConfigInvalid).
				AddDetail("label", node.Label)
		}
		seen[node.Label] = true
	}
	return &fleet, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func getEnvInts(key string) []int {
	var ids []int
	for _, part := range getEnvList(key) {
		if parsed, err := strconv.Atoi(part); err == nil {
			ids = append(ids, parsed)
		}
	}
	return ids
}
