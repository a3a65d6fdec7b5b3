package mafic

// Float returns a pointer to v, for filling optional filter fields.
func Float(v float64) *float64 { return &v }

// EQBand is one equalizer band. Band must be between 0 and 14, gain between
// -0.25 and 1.0.
type EQBand struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// Karaoke eliminates part of a band, usually targeting vocals.
type Karaoke struct {
	Level       *float64 `json:"level,omitempty"`
	MonoLevel   *float64 `json:"monoLevel,omitempty"`
	FilterBand  *float64 `json:"filterBand,omitempty"`
	FilterWidth *float64 `json:"filterWidth,omitempty"`
}

// Timescale changes the speed, pitch and rate of audio. 1.0 is normal for
// each field.
type Timescale struct {
	Speed *float64 `json:"speed,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
	Rate  *float64 `json:"rate,omitempty"`
}

// Tremolo oscillates the volume of the audio.
type Tremolo struct {
	Frequency *float64 `json:"frequency,omitempty"`
	Depth     *float64 `json:"depth,omitempty"`
}

// Vibrato oscillates the pitch of the audio.
type Vibrato struct {
	Frequency *float64 `json:"frequency,omitempty"`
	Depth     *float64 `json:"depth,omitempty"`
}

// Rotation rotates the audio around the stereo channels.
type Rotation struct {
	RotationHz *float64 `json:"rotationHz,omitempty"`
}

// Distortion applies sine, cosine and tangent distortion to the audio.
type Distortion struct {
	SinOffset *float64 `json:"sinOffset,omitempty"`
	SinScale  *float64 `json:"sinScale,omitempty"`
	CosOffset *float64 `json:"cosOffset,omitempty"`
	CosScale  *float64 `json:"cosScale,omitempty"`
	TanOffset *float64 `json:"tanOffset,omitempty"`
	TanScale  *float64 `json:"tanScale,omitempty"`
	Offset    *float64 `json:"offset,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
}

// ChannelMix mixes the left and right channels into each other. Setting all
// four to 0.5 makes the audio mono.
type ChannelMix struct {
	LeftToLeft   *float64 `json:"leftToLeft,omitempty"`
	LeftToRight  *float64 `json:"leftToRight,omitempty"`
	RightToLeft  *float64 `json:"rightToLeft,omitempty"`
	RightToRight *float64 `json:"rightToRight,omitempty"`
}

// LowPass suppresses high frequencies.
type LowPass struct {
	Smoothing *float64 `json:"smoothing,omitempty"`
}

// Filter is a set of up to nine optional parameter groups plus a volume,
// applied to a player as one unit. Its zero value means "no filtering" and
// serialises to an empty object.
type Filter struct {
	Equalizer  []EQBand    `json:"equalizer,omitempty"`
	Karaoke    *Karaoke    `json:"karaoke,omitempty"`
	Timescale  *Timescale  `json:"timescale,omitempty"`
	Tremolo    *Tremolo    `json:"tremolo,omitempty"`
	Vibrato    *Vibrato    `json:"vibrato,omitempty"`
	Rotation   *Rotation   `json:"rotation,omitempty"`
	Distortion *Distortion `json:"distortion,omitempty"`
	ChannelMix *ChannelMix `json:"channelMix,omitempty"`
	LowPass    *LowPass    `json:"lowPass,omitempty"`
	Volume     *float64    `json:"volume,omitempty"`
}

// FiltersPayload is the wire form of a Filter; they share a shape.
type FiltersPayload = Filter

// Merge combines two filters, favouring fields present on other. Per field
// the result is other's value when set, else f's.
func (f Filter) Merge(other Filter) Filter {
	merged := f
	if other.Equalizer != nil {
		merged.Equalizer = other.Equalizer
	}
	if other.Karaoke != nil {
		merged.Karaoke = other.Karaoke
	}
	if other.Timescale != nil {
		merged.Timescale = other.Timescale
	}
	if other.Tremolo != nil {
		merged.Tremolo = other.Tremolo
	}
	if other.Vibrato != nil {
		merged.Vibrato = other.Vibrato
	}
	if other.Rotation != nil {
		merged.Rotation = other.Rotation
	}
	if other.Distortion != nil {
		merged.Distortion = other.Distortion
	}
	if other.ChannelMix != nil {
		merged.ChannelMix = other.ChannelMix
	}
	if other.LowPass != nil {
		merged.LowPass = other.LowPass
	}
	if other.Volume != nil {
		merged.Volume = other.Volume
	}
	return merged
}

// Empty reports whether no filter group is set.
func (f Filter) Empty() bool {
	return f.Equalizer == nil &&
		f.Karaoke == nil &&
		f.Timescale == nil &&
		f.Tremolo == nil &&
		f.Vibrato == nil &&
		f.Rotation == nil &&
		f.Distortion == nil &&
		f.ChannelMix == nil &&
		f.LowPass == nil &&
		f.Volume == nil
}
