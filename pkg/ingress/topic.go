// Package ingress implements the MQTT topic parser and verb dispatcher
// described in §4.4: it turns an inbound plan/hb/leave topic into a
// DeviceKey and a verb, resolves the key to a session-side PlanTarget via
// a caller-supplied lookup, and applies the verb.
package ingress

import (
	"strings"

	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/util"
)

// Verb is the ingress action encoded in a topic's fourth segment.
type Verb string

const (
	VerbPlan  Verb = "plan"
	VerbHB    Verb = "hb"
	VerbLeave Verb = "leave"
)

const topicRoot = "twinsync"

// ParsedTopic is the result of successfully parsing a 7-segment ingress
// topic: twinsync/{tenant}/{gateway}/{verb}/{type}/{device}/{user}.
type ParsedTopic struct {
	Key    model.DeviceKey
	Verb   Verb
	UserID string
}

// ParseTopic applies the §4.4/§9 parse rules: split on '/', drop empty
// segments, require exactly 7 parts. root and verb compare
// case-insensitively; tenant/gateway compare (and are stored) exactly as
// given. Only the 7-segment schema is accepted — per the spec's explicit
// resolution of the ambiguity between 5-, 6-, and 7-segment drafts, every
// other segment count is rejected.
func ParseTopic(topic string) (ParsedTopic, error) {
	var parts []string
	for _, p := range strings.Split(topic, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 7 {
		return ParsedTopic{}, util.NewEnvelopeError(topic, "expected 7 non-empty segments", "")
	}
	if !strings.EqualFold(parts[0], topicRoot) {
		return ParsedTopic{}, util.NewEnvelopeError(topic, "unknown topic root", parts[0])
	}

	verb := Verb(strings.ToLower(parts[3]))
	switch verb {
	case VerbPlan, VerbHB, VerbLeave:
	default:
		return ParsedTopic{}, util.NewEnvelopeError(topic, "unknown verb", parts[3])
	}

	return ParsedTopic{
		Key:    model.NewDeviceKey(parts[1], parts[2], parts[5], parts[4]),
		Verb:   verb,
		UserID: parts[6],
	}, nil
}
