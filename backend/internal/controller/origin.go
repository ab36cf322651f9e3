package controller

import "context"

// Origin identifies who issued a command.
type Origin string

const (
	OriginAPI      Origin = "api"
	OriginMQTT     Origin = "mqtt"
	OriginAutoStop Origin = "auto-stop"
)

type originKey struct{}

// WithOrigin tags ctx with the command origin recorded in the command log.
func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

// OriginOf returns the origin tagged on ctx, defaulting to OriginAPI.
func OriginOf(ctx context.Context) Origin {
	if o, ok := ctx.Value(originKey{}).(Origin); ok {
		return o
	}

	return OriginAPI
}
