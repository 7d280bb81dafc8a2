package pricing

// Config holds the price sheet for one (provider, model) pair.
// Owned and edited by the settings service; read-only inside this system.
type Config struct {
	Provider string `db:"provider" json:"provider"`
	Model    string `db:"model" json:"model"`

	// USD per million tokens
	InputPerMillionTokens  float64 `db:"input_per_million_tokens" json:"inputPerMillionTokens"`
	OutputPerMillionTokens float64 `db:"output_per_million_tokens" json:"outputPerMillionTokens"`

	// USD per generated image (0 when the model produces no images)
	ImagePerUnit float64 `db:"image_per_unit" json:"imagePerUnit"`

	// USD per second of generated video (0 when the model produces no video)
	VideoPerSecond float64 `db:"video_per_second" json:"videoPerSecond"`
}
