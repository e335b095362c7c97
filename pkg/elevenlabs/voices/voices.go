package voices

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

type Gender string

const (
	GenderFemale  Gender = "female"
	GenderMale    Gender = "male"
	GenderNeutral Gender = "neutral"
)

// StaticVoice is a premade voice shipped by ElevenLabs.
type StaticVoice struct {
	id     string
	name   string
	gender Gender
}

func newStaticVoice(id, name string, gender Gender) StaticVoice {
	return StaticVoice{id: id, name: name, gender: gender}
}

func (v StaticVoice) ID() string {
	return v.id
}

func (v StaticVoice) Name() string {
	return v.name
}

func (v StaticVoice) Gender() Gender {
	return v.gender
}

func (v StaticVoice) String() string {
	return v.name + " (" + v.id + ")"
}

var (
	Rachel    = newStaticVoice("21m00Tcm4TlvDq8ikWAM", "Rachel", GenderFemale)
	Domi      = newStaticVoice("AZnzlk1XvdvUeBnXmlld", "Domi", GenderFemale)
	Bella     = newStaticVoice("EXAVITQu4vr4xnSDxMaL", "Bella", GenderFemale)
	Antoni    = newStaticVoice("ErXwobaYiN019PkySvjV", "Antoni", GenderMale)
	Elli      = newStaticVoice("MF3mGyEYCl7XYWbV9V6O", "Elli", GenderFemale)
	Josh      = newStaticVoice("TxGEqnHWrfWFTfGW9XjX", "Josh", GenderMale)
	Arnold    = newStaticVoice("VR6AewLTigWG4xSOukaG", "Arnold", GenderMale)
	Adam      = newStaticVoice("pNInz6obpgDQGcFmaJgB", "Adam", GenderMale)
	Sam       = newStaticVoice("yoZ06aMxZJJ28mfd3POQ", "Sam", GenderMale)
	Charlotte = newStaticVoice("XB0fDUnXU5powFXDhCwa", "Charlotte", GenderFemale)
	Aria      = newStaticVoice("9BWtsMINqrJLrRacOk9x", "Aria", GenderFemale)
	Lily      = newStaticVoice("pFZP5JQG7iQjIQuC4Bku", "Lily", GenderFemale)
	George    = newStaticVoice("JBFqnCBsd6RMkjVDRZzb", "George", GenderMale)
	Callum    = newStaticVoice("N2lVS1w4EtoT3dr4eOWO", "Callum", GenderMale)
	Charlie   = newStaticVoice("IKne3meq5aSn9XLyUdCD", "Charlie", GenderMale)
	Daniel    = newStaticVoice("onwK4e9ZLuTAKqWW03F9", "Daniel", GenderMale)
	Liam      = newStaticVoice("TX3LPaxmHKxFdv7VOQHJ", "Liam", GenderMale)
	Matilda   = newStaticVoice("XrExE9yKIg1WjnnlVkGX", "Matilda", GenderFemale)
	Brian     = newStaticVoice("nPczCjzI2devNBz1zQrb", "Brian", GenderMale)
	Chris     = newStaticVoice("iP95p4xoKVk53GoZ742B", "Chris", GenderMale)
	Eric      = newStaticVoice("cjVigY5qzO86Huf0OWal", "Eric", GenderMale)
	Will      = newStaticVoice("bIHbv24MWmeRgasZH58o", "Will", GenderMale)
	Jessica   = newStaticVoice("cgSgspJ2msm6clMCkdW9", "Jessica", GenderFemale)
	Laura     = newStaticVoice("FGY2WhTYpPnrIDTdsKH5", "Laura", GenderFemale)
	River     = newStaticVoice("SAz9YHcvj6GT2YYXdXww", "River", GenderNeutral)

	// Default is used when a request does not name a voice.
	Default = Rachel
)

var all = []StaticVoice{
	Rachel, Domi, Bella, Antoni, Elli, Josh, Arnold, Adam, Sam,
	Charlotte, Aria, Lily, George, Callum, Charlie, Daniel, Liam, Matilda,
	Brian, Chris, Eric, Will, Jessica, Laura, River,
}

func All() []StaticVoice {
	return slices.Clone(all)
}

// ByName looks a premade voice up by display name, case-insensitively.
func ByName(name string) (StaticVoice, bool) {
	return lo.Find(all, func(v StaticVoice) bool {
		return strings.EqualFold(v.name, strings.TrimSpace(name))
	})
}

func ByID(id string) (StaticVoice, bool) {
	return lo.Find(all, func(v StaticVoice) bool {
		return v.id == id
	})
}

// Resolve maps either a premade voice name or a raw voice ID to a voice ID.
func Resolve(nameOrID string) string {
	if v, ok := ByName(nameOrID); ok {
		return v.ID()
	}

	return strings.TrimSpace(nameOrID)
}
