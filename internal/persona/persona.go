// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/personachat/internal/util"
)

// PreviewLength is the number of personality runes shown in listings.
const PreviewLength = 100

// Persona is one conversational profile.
type Persona struct {
	Key         string `json:"-" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Age         int    `json:"age" yaml:"age"`
	Description string `json:"description" yaml:"description"`
	Personality string `json:"personality" yaml:"personality"`
	ChatStyle   string `json:"chat_style,omitempty" yaml:"chat_style,omitempty"`
}

// DisplayName returns the name, falling back to the key.
func (p Persona) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Key
}

// Avatar returns the persona's avatar emoji.
func (p Persona) Avatar() string {
	return Avatar(p.Key)
}

// Greeting returns the persona's opening line.
func (p Persona) Greeting() string {
	return Greeting(p.Key)
}

// Preview returns the personality cut to PreviewLength runes.
func (p Persona) Preview() string {
	return util.Preview(p.Personality, PreviewLength)
}

// Status is the one-line subtitle shown under the persona name.
func (p Persona) Status() string {
	if p.Age > 0 && p.Description != "" {
		return fmt.Sprintf("Age %d • %s", p.Age, p.Description)
	}
	if p.Age > 0 {
		return fmt.Sprintf("Age %d", p.Age)
	}
	return p.Description
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable, key-ordered set of personas.
type Catalog struct {
	byKey map[string]Persona
	keys  []string
}

// NewCatalog builds a catalog from the backend's key→persona map.
// Each persona's Key is set from its map key.
func NewCatalog(m map[string]Persona) *Catalog {
	c := &Catalog{
		byKey: make(map[string]Persona, len(m)),
		keys:  make([]string, 0, len(m)),
	}
	for k, p := range m {
		p.Key = k
		c.byKey[k] = p
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	return c
}

// Len returns the number of personas.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Keys returns the persona keys in sorted order.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// List returns the personas in key order.
func (c *Catalog) List() []Persona {
	if c == nil {
		return nil
	}
	out := make([]Persona, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.byKey[k])
	}
	return out
}

// Get looks a persona up by exact key.
func (c *Catalog) Get(key string) (Persona, bool) {
	if c == nil {
		return Persona{}, false
	}
	p, ok := c.byKey[key]
	return p, ok
}

// Resolve finds a persona by key or display name, ignoring case.
func (c *Catalog) Resolve(nameOrKey string) (Persona, error) {
	want := strings.TrimSpace(nameOrKey)
	if want == "" {
		return Persona{}, fmt.Errorf("%w: empty name", ErrUnknown)
	}
	if p, ok := c.Get(want); ok {
		return p, nil
	}
	for _, p := range c.List() {
		if strings.EqualFold(p.Key, want) || strings.EqualFold(p.Name, want) {
			return p, nil
		}
	}
	return Persona{}, fmt.Errorf("%w: %q", ErrUnknown, nameOrKey)
}
