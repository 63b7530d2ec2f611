// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import "errors"

// ErrUnknown is returned when a persona cannot be resolved.
var ErrUnknown = errors.New("unknown persona")

// DefaultAvatar is used for personas without a dedicated avatar.
const DefaultAvatar = "👤"

// DefaultGreeting is used for personas without a dedicated greeting.
const DefaultGreeting = "Hello! Nice to meet you! I'm excited to chat with you."

var avatars = map[string]string{
	"aarohi": "💖",
	"kabir":  "🔥",
	"meher":  "✨",
	"raghav": "🤔",
	"simran": "😏",
}

var greetings = map[string]string{
	"aarohi": "Hey there! I'm Aarohi! 💖 So excited to chat with you, babe! Tell me about your day! 🥺✨",
	"kabir":  "Yo yo! What's good, bruh? 😎🔥 Ready for some epic conversations?",
	"meher":  "Hello gorgeous! ✨ I'm Meher and I'm absolutely obsessed with meeting new people! Hope you're having an amazing day! 🌸💫",
	"raghav": "Hi... I'm Raghav. I don't really talk to many people in real life, but I'm actually glad you're here to chat. It gets pretty lonely sometimes...",
	"simran": "Heyyyy! 😏 I'm Simran and I'm ready for some REAL talk! Don't bore me now! 💅✨",
}

// Avatar returns the avatar emoji for a persona key.
func Avatar(key string) string {
	if a, ok := avatars[key]; ok {
		return a
	}
	return DefaultAvatar
}

// Greeting returns the opening line for a persona key.
func Greeting(key string) string {
	if g, ok := greetings[key]; ok {
		return g
	}
	return DefaultGreeting
}
