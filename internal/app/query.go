package app

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Cript/game-rps/internal/rps"
)

// MaxEventsPerQuery caps a single /events page.
const MaxEventsPerQuery = 100

// NonceView is the /nonce/<address> response.
type NonceView struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

// EventsPage is the /events/<from> response. Next is the sequence to ask for
// on the following call.
type EventsPage struct {
	Events []rps.Notification `json:"events"`
	Next   uint64             `json:"next"`
}

func (a *RPSApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /session/<id>
	// - /sessions
	// - /events/<from>
	// - /nonce/<address>
	// - /params
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/sessions":
		return a.queryOK(a.reg.SessionIDs())

	case path == "/params":
		return a.queryOK(a.reg.Params())

	case strings.HasPrefix(path, "/session/"):
		raw := strings.TrimPrefix(path, "/session/")
		id, err := parseSessionID(raw)
		if err != nil {
			return a.queryErr(err), nil
		}
		view, err := a.reg.GetSession(id)
		if err != nil {
			return a.queryErr(err), nil
		}
		return a.queryOK(view)

	case strings.HasPrefix(path, "/events/"):
		raw := strings.TrimPrefix(path, "/events/")
		from, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return a.queryErr(rps.ErrInvalidRequest.Wrapf("invalid sequence %q", raw)), nil
		}
		if from == 0 {
			from = 1
		}
		evs := a.reg.Notifications(from, MaxEventsPerQuery)
		if evs == nil {
			evs = []rps.Notification{}
		}
		return a.queryOK(EventsPage{Events: evs, Next: from + uint64(len(evs))})

	case strings.HasPrefix(path, "/nonce/"):
		raw := strings.TrimPrefix(path, "/nonce/")
		if !common.IsHexAddress(raw) {
			return a.queryErr(rps.ErrInvalidRequest.Wrapf("invalid address %q", raw)), nil
		}
		addr := common.HexToAddress(raw)
		return a.queryOK(NonceView{Address: addr, Nonce: a.st.NonceMax[addr]})

	default:
		return a.queryErr(ErrUnknownQuery.Wrap(path)), nil
	}
}

func (a *RPSApp) queryOK(v any) (*abci.QueryResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &abci.QueryResponse{Code: abci.CodeTypeOK, Value: b, Height: a.st.Height}, nil
}

func (a *RPSApp) queryErr(err error) *abci.QueryResponse {
	codespace, code, log := abciError(err)
	return &abci.QueryResponse{Codespace: codespace, Code: code, Log: log, Height: a.st.Height}
}

func parseSessionID(raw string) (common.Hash, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, rps.ErrInvalidRequest.Wrapf("invalid session id %q", raw)
	}
	return common.BytesToHash(b), nil
}
