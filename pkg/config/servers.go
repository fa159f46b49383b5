package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Server is one entry of the servers file. Either "server_id" or "id" may
// carry the guild id; GuildID resolves the precedence.
type Server struct {
	ID       string    `json:"id"        yaml:"id"`
	ServerID string    `json:"server_id" yaml:"server_id"`
	Name     string    `json:"name"      yaml:"name"`
	Channels []Channel `json:"channels"  yaml:"channels"`
}

// Channel is one channel entry under a server.
type Channel struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// GuildID returns the server's guild id, preferring "server_id" over "id".
func (s Server) GuildID() string {
	if id := strings.TrimSpace(s.ServerID); id != "" {
		return id
	}
	return strings.TrimSpace(s.ID)
}

// LoadServers reads the servers file. A missing or malformed file yields an
// empty list rather than an error: the watch can run without a directory,
// it just cannot resolve names. ${VAR} placeholders in string fields are
// expanded from the environment. Files ending in .yaml or .yml are parsed
// as YAML, anything else as JSON.
func LoadServers(path string) []Server {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAMLServers(raw)
	default:
		return decodeJSONServers(raw)
	}
}

// decodeJSONServers parses a JSON array of server objects, skipping entries
// that are not objects.
func decodeJSONServers(raw []byte) []Server {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	servers := make([]Server, 0, len(items))
	for _, item := range items {
		var s Server
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		servers = append(servers, expandServer(s))
	}
	return servers
}

func decodeYAMLServers(raw []byte) []Server {
	var servers []Server
	if err := yaml.Unmarshal(raw, &servers); err != nil {
		return nil
	}
	for i, s := range servers {
		servers[i] = expandServer(s)
	}
	return servers
}

func expandServer(s Server) Server {
	s.ID = ExpandEnvValues(s.ID)
	s.ServerID = ExpandEnvValues(s.ServerID)
	s.Name = ExpandEnvValues(s.Name)
	for i, ch := range s.Channels {
		s.Channels[i].ID = ExpandEnvValues(ch.ID)
		s.Channels[i].Name = ExpandEnvValues(ch.Name)
	}
	return s
}

// ChannelNames maps channel id to channel name across all servers.
func ChannelNames(servers []Server) map[string]string {
	names := make(map[string]string)
	for _, server := range servers {
		for _, channel := range server.Channels {
			id := strings.TrimSpace(channel.ID)
			name := strings.TrimSpace(channel.Name)
			if id != "" && name != "" {
				names[id] = name
			}
		}
	}
	return names
}
