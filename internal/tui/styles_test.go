package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStatusStyle(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"succeeded", "SuccessStyle"},
		{"failed", "ErrorStyle"},
		{"deploying", "StatusRunning"},
		{"interrupted", "SkippedStyle"},
		{"", "NormalStyle"},
		{"something-else", "NormalStyle"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := GetStatusStyle(tt.status)

			switch tt.expected {
			case "SuccessStyle":
				assert.Equal(t, SuccessStyle, result)
			case "ErrorStyle":
				assert.Equal(t, ErrorStyle, result)
			case "StatusRunning":
				assert.Equal(t, StatusRunning, result)
			case "SkippedStyle":
				assert.Equal(t, SkippedStyle, result)
			default:
				assert.Equal(t, NormalStyle, result)
			}
		})
	}
}

func TestGetStatusIcon(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"succeeded", "●"},
		{"failed", "✗"},
		{"deploying", "◐"},
		{"skipped", "○"},
		{"interrupted", "⚠"},
		{"unknown", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetStatusIcon(tt.status))
		})
	}
}
