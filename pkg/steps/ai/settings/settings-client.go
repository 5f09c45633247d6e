package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"timeout_second,omitempty"`
	Organization   *string        `yaml:"organization,omitempty"`
	UserAgent      *string        `yaml:"user_agent,omitempty"`
	HTTPClient     *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML reads timeout as a number of seconds.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		Timeout      *int    `yaml:"timeout,omitempty"`
		Organization *string `yaml:"organization,omitempty"`
		UserAgent    *string `yaml:"user_agent,omitempty"`
	}{}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
		cs.TimeoutSeconds = aux.Timeout
	}
	if aux.Organization != nil {
		cs.Organization = aux.Organization
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}
	return nil
}

// MarshalYAML writes timeout back as seconds so that files round trip.
func (cs *ClientSettings) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{}
	if cs.Timeout != nil {
		out["timeout"] = int(cs.Timeout.Seconds())
	}
	if cs.Organization != nil {
		out["organization"] = *cs.Organization
	}
	if cs.UserAgent != nil {
		out["user_agent"] = *cs.UserAgent
	}
	return out, nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	if cs == nil {
		return nil
	}
	httpClient := cs.HTTPClient
	ret := clone.Clone(&ClientSettings{
		Timeout:        cs.Timeout,
		TimeoutSeconds: cs.TimeoutSeconds,
		Organization:   cs.Organization,
		UserAgent:      cs.UserAgent,
	}).(*ClientSettings)
	ret.HTTPClient = httpClient
	return ret
}

// GetHTTPClient returns the configured client, or a fresh one honouring Timeout.
func (cs *ClientSettings) GetHTTPClient() *http.Client {
	if cs == nil {
		return http.DefaultClient
	}
	if cs.HTTPClient != nil {
		return cs.HTTPClient
	}
	c := &http.Client{}
	if cs.Timeout != nil {
		c.Timeout = *cs.Timeout
	}
	return c
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
		TimeoutSeconds: func() *int {
			i := int(defaultTimeout.Seconds())
			return &i
		}(),
	}
}
