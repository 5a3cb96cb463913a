package statemachine

import "github.com/kstaniek/spa-gateway/internal/protocol"

// FilterResult classifies how a channel relates to a ChannelFilter.
type FilterResult int

const (
	FilterMyChannel FilterResult = iota
	FilterBroadcast
	FilterAny
	FilterBlocked
)

// ChannelFilter restricts which channels a state machine reacts to.
type ChannelFilter struct {
	kind    filterKind
	targets []protocol.Channel
}

type filterKind int

const (
	filterNone filterKind = iota
	filterRelevantTo
	filterBlockEverything
)

// NoFilter accepts every channel.
func NoFilter() ChannelFilter { return ChannelFilter{kind: filterNone} }

// RelevantTo accepts only the given channels, plus the broadcast channel.
func RelevantTo(targets ...protocol.Channel) ChannelFilter {
	return ChannelFilter{kind: filterRelevantTo, targets: targets}
}

// BlockEverything rejects every channel.
func BlockEverything() ChannelFilter { return ChannelFilter{kind: filterBlockEverything} }

// Apply classifies channel against the filter.
func (f ChannelFilter) Apply(channel protocol.Channel) FilterResult {
	switch f.kind {
	case filterNone:
		return FilterAny
	case filterBlockEverything:
		return FilterBlocked
	case filterRelevantTo:
		for _, t := range f.targets {
			if t.Equal(channel) {
				return FilterMyChannel
			}
		}
		if channel.IsMulticastBroadcast() {
			return FilterBroadcast
		}
		return FilterBlocked
	default:
		return FilterBlocked
	}
}
