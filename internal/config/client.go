package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client delivery modes for invitation updates.
const (
	ModePoll   = "poll"
	ModeStream = "stream"
)

// ClientConfig configures the terminal client.
type ClientConfig struct {
	Env     string
	APIURL  string
	Token   string
	LogFile string
	Mode    string

	IncomingInterval time.Duration
	OutgoingInterval time.Duration
	RingTimeout      time.Duration
	DeclinedDisplay  time.Duration
}

func LoadClient() (ClientConfig, error) {
	c := ClientConfig{
		Env:     strings.TrimSpace(os.Getenv("APP_ENV")),
		APIURL:  strings.TrimSpace(os.Getenv("LISTENLINK_API_URL")),
		Token:   strings.TrimSpace(os.Getenv("LISTENLINK_TOKEN")),
		LogFile: strings.TrimSpace(os.Getenv("LISTENLINK_LOG_FILE")),
		Mode:    strings.TrimSpace(os.Getenv("LISTENLINK_MODE")),

		IncomingInterval: mustDuration("LISTENLINK_INCOMING_INTERVAL"),
		OutgoingInterval: mustDuration("LISTENLINK_OUTGOING_INTERVAL"),
		RingTimeout:      mustDuration("LISTENLINK_RING_TIMEOUT"),
		DeclinedDisplay:  mustDuration("LISTENLINK_DECLINED_DISPLAY"),
	}
	if err := c.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return c, nil
}

// Validate checks required fields and fills defaults in place.
func (c *ClientConfig) Validate() error {
	var errs []error

	if c.Env == "" {
		c.Env = "local"
	} else if !isValidEnv(c.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.Env))
	}

	if c.APIURL == "" {
		errs = append(errs, errors.New("LISTENLINK_API_URL is required"))
	} else if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("LISTENLINK_API_URL must be an http(s) URL, got %q", c.APIURL))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("LISTENLINK_TOKEN is required"))
	}

	if c.LogFile == "" {
		c.LogFile = "listenlink.log"
	}
	switch c.Mode {
	case "":
		c.Mode = ModePoll
	case ModePoll, ModeStream:
	default:
		errs = append(errs, fmt.Errorf("LISTENLINK_MODE must be poll or stream, got %q", c.Mode))
	}

	if c.IncomingInterval <= 0 {
		c.IncomingInterval = 3 * time.Second
	}
	if c.OutgoingInterval <= 0 {
		c.OutgoingInterval = 2 * time.Second
	}
	if c.RingTimeout <= 0 {
		c.RingTimeout = 30 * time.Second
	}
	if c.DeclinedDisplay <= 0 {
		c.DeclinedDisplay = 3 * time.Second
	}

	return joinErrors(errs)
}
