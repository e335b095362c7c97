package voices

// Voice is an entry of the GET /voices listing.
type Voice struct {
	VoiceID     string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	PreviewURL  string            `json:"preview_url,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

func (v Voice) Gender() Gender {
	return Gender(v.Labels["gender"])
}

// ListVoicesResponse is the body of GET /voices.
type ListVoicesResponse struct {
	Voices []Voice `json:"voices"`
}

// FromStatic converts a premade voice into its listing form.
func FromStatic(v StaticVoice) Voice {
	return Voice{
		VoiceID:  v.ID(),
		Name:     v.Name(),
		Category: "premade",
		Labels: map[string]string{
			"gender": string(v.Gender()),
		},
	}
}
