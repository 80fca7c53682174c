package config

import (
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

type ICEConfig struct {
	Servers []ICEServerConfig `mapstructure:"servers"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

func (c ICEConfig) Validate() error {
	for i, server := range c.Servers {
		if len(server.URLs) == 0 {
			return fmt.Errorf("ice.servers[%d]: at least one url is required", i)
		}
		for _, url := range server.URLs {
			url = strings.ToLower(strings.TrimSpace(url))
			switch {
			case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
			case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
				if server.Username == "" || server.Credential == "" {
					return fmt.Errorf("ice.servers[%d]: turn url %q requires username and credential", i, url)
				}
			default:
				return fmt.Errorf("ice.servers[%d]: unsupported ice url %q", i, url)
			}
		}
	}
	return nil
}

// WebRTCServers converts the configured list into the shape browsers and pion
// peers accept for RTCPeerConnection configuration.
func (c ICEConfig) WebRTCServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.Servers))
	for _, server := range c.Servers {
		urls := make([]string, 0, len(server.URLs))
		for _, url := range server.URLs {
			if url = strings.TrimSpace(url); url != "" {
				urls = append(urls, url)
			}
		}

		ice := webrtc.ICEServer{
			URLs:     urls,
			Username: strings.TrimSpace(server.Username),
		}
		if server.Credential != "" {
			ice.Credential = server.Credential
		}
		out = append(out, ice)
	}
	return out
}
