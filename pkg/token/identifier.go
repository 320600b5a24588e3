package token

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tokenflight/pkg/swaperr"
)

// SolanaChainID is the numeric chain id the backend assigns to Solana mainnet
const SolanaChainID int64 = 20011000000

// knownReferences maps a CAIP-2 namespace to its known chain references
var knownReferences = map[string]map[string]int64{
	"eip155": {},
	"solana": {
		"5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp": SolanaChainID,
		"mainnet":                          SolanaChainID,
	},
}

// Target is the canonical identity of a token on a chain
type Target struct {
	ChainID int64  `json:"chainId"`
	Address string `json:"address"`
}

// String renders the target as chainId:address
func (t Target) String() string {
	return fmt.Sprintf("%d:%s", t.ChainID, t.Address)
}

// Key is the case-folded form used as a cache key
func (t Target) Key() string {
	return fmt.Sprintf("%d:%s", t.ChainID, strings.ToLower(t.Address))
}

// IsSolana reports whether the token lives on Solana
func (t Target) IsSolana() bool {
	return t.ChainID == SolanaChainID
}

// Parse normalizes a token reference into a Target. Accepted inputs:
//   - a Target or *Target
//   - an object (map[string]any) with numeric chainId and string address
//   - a JSON encoding of that object, as string or []byte
//   - a namespace:reference:address triplet such as eip155:1:0xA0b8...
func Parse(v any) (Target, error) {
	switch ref := v.(type) {
	case Target:
		return validate(ref)
	case *Target:
		if ref == nil {
			return Target{}, invalid("nil token target")
		}
		return validate(*ref)
	case map[string]any:
		return fromObject(ref)
	case []byte:
		return fromJSON(ref)
	case json.RawMessage:
		return fromJSON(ref)
	case string:
		s := strings.TrimSpace(ref)
		if strings.HasPrefix(s, "{") {
			return fromJSON([]byte(s))
		}
		return fromTriplet(s)
	default:
		return Target{}, invalid(fmt.Sprintf("unsupported token identifier type %T", v))
	}
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(v any) Target {
	t, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return t
}

func fromTriplet(s string) (Target, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Target{}, invalid(fmt.Sprintf("expected namespace:reference:address, got %q", s))
	}
	for _, p := range parts {
		if p == "" {
			return Target{}, invalid(fmt.Sprintf("empty component in %q", s))
		}
	}

	namespace, reference, address := parts[0], parts[1], parts[2]
	refs, ok := knownReferences[namespace]
	if !ok {
		return Target{}, invalid(fmt.Sprintf("unknown namespace %q", namespace))
	}

	chainID, ok := refs[reference]
	if !ok {
		if namespace != "eip155" {
			return Target{}, invalid(fmt.Sprintf("unknown %s reference %q", namespace, reference))
		}
		id, err := strconv.ParseInt(reference, 10, 64)
		if err != nil {
			return Target{}, invalid(fmt.Sprintf("eip155 reference %q is not an integer", reference))
		}
		chainID = id
	}

	return validate(Target{ChainID: chainID, Address: address})
}

func fromJSON(data []byte) (Target, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return Target{}, swaperr.Wrap(swaperr.InvalidTokenIdentifier, err, "token identifier is not valid JSON")
	}
	return fromObject(obj)
}

func fromObject(obj map[string]any) (Target, error) {
	chainID, err := numericChainID(obj["chainId"])
	if err != nil {
		return Target{}, err
	}
	address, ok := obj["address"].(string)
	if !ok {
		return Target{}, invalid("address must be a string")
	}
	return validate(Target{ChainID: chainID, Address: address})
}

func numericChainID(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 {
			return 0, invalid(fmt.Sprintf("chainId %v is not an integer", n))
		}
		return int64(n), nil
	case json.Number:
		id, err := n.Int64()
		if err != nil {
			return 0, invalid(fmt.Sprintf("chainId %q is not an integer", n.String()))
		}
		return id, nil
	default:
		return 0, invalid("chainId must be numeric")
	}
}

func validate(t Target) (Target, error) {
	t.Address = strings.TrimSpace(t.Address)
	if t.ChainID < 1 {
		return Target{}, invalid(fmt.Sprintf("chainId must be >= 1, got %d", t.ChainID))
	}
	if t.Address == "" {
		return Target{}, invalid("address is required")
	}
	return t, nil
}

func invalid(msg string) error {
	return swaperr.New(swaperr.InvalidTokenIdentifier, msg)
}
