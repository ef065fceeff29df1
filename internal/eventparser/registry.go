package eventparser

import (
	"github.com/chainwatch/evmcrawler/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParserFunc decodes one raw log known to match its registered event name.
type ParserFunc func(log *types.Log) (*ParsedEvent, error)

// Registry is a name-keyed table of event parsers. It never aborts a batch:
// logs whose topic doesn't match a registered event are warned about and
// skipped, and logs that fail to decode are logged and skipped.
type Registry struct {
	log *logger.Logger

	topicToName map[common.Hash]string
	parsers     map[string]ParserFunc
}

// NewRegistry creates an empty registry. Use Register to populate it.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:         log,
		topicToName: make(map[common.Hash]string),
		parsers:     make(map[string]ParserFunc),
	}
}

// Register adds a parser for the given event signature, e.g.
// "Deposit(address,address,uint256,uint8)". Registration is additive: it
// never requires touching the crawler.
func (r *Registry) Register(name, signature string, fn ParserFunc) {
	topic := crypto.Keccak256Hash([]byte(signature))
	r.topicToName[topic] = name
	r.parsers[name] = fn
}

// EventNames returns the names known to this registry, in no particular
// order, for building RPC log filters.
func (r *Registry) EventNames() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	return names
}

// Topics returns the topic0 hash of every registered event, in no
// particular order, for building the RPC pool's getLogs filter.
func (r *Registry) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(r.topicToName))
	for topic := range r.topicToName {
		topics = append(topics, topic)
	}
	return topics
}

// ParseAll decodes every log whose topic0 matches a registered event,
// skipping and logging unknown or malformed logs instead of aborting.
func (r *Registry) ParseAll(logs []types.Log) []*ParsedEvent {
	events := make([]*ParsedEvent, 0, len(logs))

	for i := range logs {
		log := &logs[i]
		if len(log.Topics) == 0 {
			continue
		}

		name, known := r.topicToName[log.Topics[0]]
		if !known {
			r.log.Warnf("skipping log with unknown event topic %s at tx %s", log.Topics[0].Hex(), log.TxHash.Hex())
			continue
		}

		parser := r.parsers[name]
		event, err := parser(log)
		if err != nil {
			r.log.Errorf("failed to parse %s event at block %d, tx %s: %v",
				name, log.BlockNumber, log.TxHash.Hex(), err)
			continue
		}

		events = append(events, event)
	}

	return events
}
