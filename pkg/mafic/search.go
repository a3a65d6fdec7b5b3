package mafic

// SearchType is the provider token prefixed to non-URL queries. Several of
// these need server-side plugins (LavaSrc, DuncteBot) to resolve.
type SearchType string

const (
	SearchYouTube      SearchType = "ytsearch"
	SearchYouTubeMusic SearchType = "ytmsearch"
	SearchSoundCloud   SearchType = "scsearch"
	SearchSpotify      SearchType = "spsearch"
	SearchSpotifyRec   SearchType = "sprec"
	SearchAppleMusic   SearchType = "amsearch"
	SearchDeezer       SearchType = "dzsearch"
	SearchDeezerISRC   SearchType = "dzisrc"
	SearchYandexMusic  SearchType = "ymsearch"
	SearchTextToSpeech SearchType = "speak"
)
