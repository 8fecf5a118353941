// Package widget carries messages between journal pages and the assistant:
// pages announce which entry they show, the assistant calls named
// procedures on pages and gets an acknowledgement back.
package widget

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Outbound actions, page to assistant.
const (
	ActionLoadEntry   = "load_entry"
	ActionReloadEntry = "reload_entry"
)

// CallUpdateJournal asks a page to reload its entry after the assistant
// rewrote it.
const CallUpdateJournal = "update_journal"

// AckUpdated is what a page answers to CallUpdateJournal.
const AckUpdated = "Journal entry updated successfully"

// Frame types on the socket.
const (
	FrameMessage = "message"
	FrameCall    = "call"
	FrameAck     = "ack"
)

// SocketPath is where the hub is mounted.
const SocketPath = "/api/widget"

// Message is sent by a page when it binds an entry.
type Message struct {
	Action   string `json:"action"`
	Filename string `json:"filename"`
}

// Validate implements validation.Validatable.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Action, validation.Required, validation.In(ActionLoadEntry, ActionReloadEntry)),
		validation.Field(&m.Filename, validation.Required),
	)
}

// LoadEntry builds a load_entry message.
func LoadEntry(filename string) Message {
	return Message{Action: ActionLoadEntry, Filename: filename}
}

// ReloadEntry builds a reload_entry message.
func ReloadEntry(filename string) Message {
	return Message{Action: ActionReloadEntry, Filename: filename}
}

// Frame is the socket envelope. Which fields are set depends on Type.
type Frame struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Action   string            `json:"action,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Name     string            `json:"name,omitempty"`
	Args     map[string]string `json:"args,omitempty"`
	Result   string            `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func messageFrame(m Message) Frame {
	return Frame{Type: FrameMessage, Action: m.Action, Filename: m.Filename}
}

func (f Frame) message() Message {
	return Message{Action: f.Action, Filename: f.Filename}
}

// Style is the look of the widget launcher button.
type Style struct {
	BgColor     string `json:"bgcolor" yaml:"bgcolor"`
	Color       string `json:"color" yaml:"color"`
	BorderColor string `json:"borderColor" yaml:"border_color"`
}

// Config tells a page where the assistant lives and how to draw it.
type Config struct {
	Server string `json:"server" yaml:"server"`
	Style  Style  `json:"style" yaml:"style"`
}

// DefaultConfig returns the stock light launcher style.
func DefaultConfig() Config {
	return Config{
		Server: "http://localhost:8080",
		Style: Style{
			BgColor:     "#ffffff",
			Color:       "#000000",
			BorderColor: "#e0e0e0",
		},
	}
}

// Validate implements validation.Validatable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server, validation.Required, validation.By(httpURL)),
	)
}

// SocketURL returns the websocket address of the hub on Server.
func (c Config) SocketURL() (string, error) {
	u, err := url.Parse(c.Server)
	if err != nil {
		return "", fmt.Errorf("widget: server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("widget: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + SocketPath
	return u.String(), nil
}

func httpURL(v interface{}) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return errors.New("must be an absolute url")
	}
	return nil
}
