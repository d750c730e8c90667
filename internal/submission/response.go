package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// serverReply is the JSON body the permit office returns.
type serverReply struct {
	Success any    `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (r *serverReply) ok() bool {
	switch v := r.Success.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "ok", "success":
			return true
		}
	}
	return false
}

func (r *serverReply) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

type marker struct {
	needles []string
	message string
}

// Checked in order; the first marker found in the body wins.
var markers = []marker{
	{
		needles: []string{"fatal error", "parse error", "<?php"},
		message: "The server encountered a script error (PHP) while processing your application. Please try again later or contact the permit office.",
	},
	{
		needles: []string{"traceback (most recent call last)"},
		message: "The server encountered an internal exception (Python traceback) while processing your application. Please contact the permit office.",
	},
	{
		needles: []string{"stack trace:", "uncaught exception"},
		message: "The server raised an unhandled exception while processing your application. Please contact the permit office.",
	},
	{
		needles: []string{"warning:", "notice:", "deprecated:"},
		message: "The server emitted script warnings instead of a valid response. Please contact the permit office.",
	},
	{
		needles: []string{"<!doctype html", "<html"},
		message: "The server returned a web page instead of a response. The submission endpoint may be misconfigured.",
	},
}

// diagnose names the kind of server failure visible in a body that is not valid JSON.
func diagnose(body []byte) string {
	text := strings.ToLower(string(bytes.TrimSpace(body)))
	if text == "" {
		return "The server returned an empty response."
	}
	for _, m := range markers {
		for _, n := range m.needles {
			if strings.Contains(text, n) {
				return m.message
			}
		}
	}
	return "The server returned an invalid response that could not be read."
}

// parseReply reads body as JSON. On failure it returns a diagnostic built from the raw text.
func parseReply(body []byte) (*serverReply, string) {
	trimmed := bytes.TrimSpace(body)
	// strip a UTF-8 BOM some PHP setups emit
	trimmed = bytes.TrimPrefix(trimmed, []byte("\xef\xbb\xbf"))
	var reply serverReply
	if len(trimmed) == 0 || json.Unmarshal(trimmed, &reply) != nil {
		return nil, diagnose(body)
	}
	return &reply, ""
}

func networkDiagnostic(endpoint string) string {
	return fmt.Sprintf("Unable to reach the permit server. Check that the server is running and reachable, "+
		"that the submission endpoint (%s) is correct, and that the server accepts cross-origin requests from this portal.", endpoint)
}
