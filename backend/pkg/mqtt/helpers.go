package mqtt

import (
	"errors"
	"fmt"
	"strings"
)

// isValidParameterName reports whether name starts with a letter and contains only letters,
// digits and underscores.
func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}

	return true
}

// paramName returns the parameter name of a {param} segment.
func paramName(segment string) (string, bool) {
	if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
		return segment[1 : len(segment)-1], true
	}

	return "", false
}

// validateTopicPattern validates an MQTT topic pattern with {param} placeholders.
// Valid patterns:
// - Parameters must be in {paramName} format (e.g., greenhouse/{channelID}/reading)
// - Parameter names must start with a letter and contain only alphanumeric characters and underscores
// - Multi-level wildcards '#' are NOT supported for explicitness.
func validateTopicPattern(topic string) error {
	if topic == "" {
		return errors.New("topic cannot be empty")
	}

	if strings.HasPrefix(topic, "/") {
		return errors.New("leading slash is not allowed")
	}

	if strings.HasSuffix(topic, "/") {
		return errors.New("trailing slash is not allowed")
	}

	for segment := range strings.SplitSeq(topic, "/") {
		if segment == "" {
			return errors.New("empty segments are not allowed")
		}

		if strings.Contains(segment, "#") {
			return errors.New("multi-level wildcard '#' is not supported - use explicit parameters {param} instead")
		}

		if strings.Contains(segment, "+") {
			return errors.New("wildcard '+' is not supported - use parameter syntax {param} instead")
		}

		if name, ok := paramName(segment); ok {
			if !isValidParameterName(name) {
				return fmt.Errorf("invalid parameter name '%s' - must start with a letter and contain only alphanumeric characters and underscores", name)
			}
		} else if strings.ContainsAny(segment, "{}") {
			return errors.New("invalid parameter syntax - use {paramName} format")
		}
	}

	return nil
}

// convertTopicToMQTT converts a parameterized topic (greenhouse/{channelID}/reading)
// to an MQTT wildcard pattern (greenhouse/+/reading).
func convertTopicToMQTT(topic string) string {
	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if _, ok := paramName(segment); ok {
			segments[i] = "+"
		}
	}

	return strings.Join(segments, "/")
}

// fillTopic substitutes params into a validated pattern.
func fillTopic(pattern string, params map[string]string) (string, error) {
	segments := strings.Split(pattern, "/")

	for i, segment := range segments {
		name, ok := paramName(segment)
		if !ok {
			continue
		}

		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("missing value for topic parameter %s", name)
		}

		if strings.ContainsAny(value, "/+#") {
			return "", fmt.Errorf("value %q for topic parameter %s contains reserved characters", value, name)
		}

		segments[i] = value
	}

	return strings.Join(segments, "/"), nil
}

// matchTopic extracts parameter values from a concrete topic. It reports false if the topic
// does not match the pattern.
func matchTopic(pattern, topic string) (map[string]string, bool) {
	want := strings.Split(pattern, "/")
	got := strings.Split(topic, "/")

	if len(want) != len(got) {
		return nil, false
	}

	params := make(map[string]string)

	for i, segment := range want {
		if name, ok := paramName(segment); ok {
			params[name] = got[i]
			continue
		}

		if segment != got[i] {
			return nil, false
		}
	}

	return params, true
}

// validateQoS validates a QoS level.
func validateQoS(qos QoS) error {
	if qos != QoSAtMostOnce && qos != QoSAtLeastOnce && qos != QoSExactlyOnce {
		return errors.New("qos must be 0, 1, or 2")
	}

	return nil
}

// validateParameters checks that the documented parameters and the ones in the topic agree.
func validateParameters(topic string, topicParams []TopicParameter) error {
	inTopic := map[string]struct{}{}

	for segment := range strings.SplitSeq(topic, "/") {
		if name, ok := paramName(segment); ok {
			inTopic[name] = struct{}{}
		}
	}

	documented := map[string]struct{}{}

	for _, p := range topicParams {
		if p.Name == "" {
			return fmt.Errorf("parameter name required for topic %s", topic)
		}

		if p.Description == "" {
			return fmt.Errorf("parameter Description required for topic %s", topic)
		}

		if _, exists := inTopic[p.Name]; !exists {
			return fmt.Errorf("documented parameter %s not found in topic", p.Name)
		}

		documented[p.Name] = struct{}{}
	}

	for name := range inTopic {
		if _, exists := documented[name]; !exists {
			return fmt.Errorf("topic parameter %s not documented", name)
		}
	}

	return nil
}

func validateCommon(operationID, summary, description, group string, messageType any, qos QoS) error {
	if operationID == "" {
		return errors.New("operationID is required")
	}

	if summary == "" {
		return errors.New("summary is required")
	}

	if description == "" {
		return errors.New("description is required")
	}

	if group == "" {
		return errors.New("group is required")
	}

	if messageType == nil {
		return errors.New("messageType is required")
	}

	return validateQoS(qos)
}

// validatePublicationSpec validates a publication specification.
func validatePublicationSpec(spec PublicationSpec) error {
	return validateCommon(spec.OperationID, spec.Summary, spec.Description, spec.Group, spec.MessageType, spec.QoS)
}

// validateSubscriptionSpec validates a subscription specification.
func validateSubscriptionSpec(spec SubscriptionSpec) error {
	if err := validateCommon(spec.OperationID, spec.Summary, spec.Description, spec.Group, spec.MessageType, spec.QoS); err != nil {
		return err
	}

	if spec.Handler == nil {
		return errors.New("handler is required")
	}

	return nil
}
