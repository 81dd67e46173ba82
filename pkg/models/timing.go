package models

// WordTiming is one aligned word of a narration, times in seconds
type WordTiming struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns how long the word is spoken.
func (w WordTiming) Duration() float64 {
	return w.End - w.Start
}

// VoiceSettings are the synthesis parameters forwarded to the speech provider
type VoiceSettings struct {
	Stability       float64 `json:"stability" mapstructure:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" mapstructure:"similarityBoost"`
	Style           float64 `json:"style,omitempty" mapstructure:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost" mapstructure:"useSpeakerBoost"`
	Speed           float64 `json:"speed,omitempty" mapstructure:"speed"`
}

// VoiceConfig identifies the voice used for a narration
type VoiceConfig struct {
	VoiceID  string        `json:"voice_id" mapstructure:"voiceID"`
	Settings VoiceSettings `json:"settings" mapstructure:"settings"`
}
