package security

type OriginConfig struct {
	CheckOrigin  bool
	AllowOrigins []string
}
