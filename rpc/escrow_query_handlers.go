package rpc

import (
	"encoding/json"
	"net/http"

	"escrowd/core/types"
	"escrowd/crypto"
	"escrowd/native/escrow"
)

type escrowIDParams struct {
	ID uint64 `json:"id"`
}

type addressParams struct {
	Address string `json:"address"`
}

type listEventsParams struct {
	Prefix string `json:"prefix,omitempty"`
	Limit  *int   `json:"limit,omitempty"`
}

type escrowJSON struct {
	ID               uint64 `json:"id"`
	Buyer            string `json:"buyer"`
	Seller           string `json:"seller"`
	Arbiter          string `json:"arbiter"`
	Amount           string `json:"amount"`
	Status           string `json:"status"`
	CreatedAt        int64  `json:"createdAt"`
	DeliveryDeadline int64  `json:"deliveryDeadline"`
}

type escrowStatusJSON struct {
	ID              uint64 `json:"id"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	BuyerApproved   bool   `json:"buyerApproved"`
	SellerConfirmed bool   `json:"sellerConfirmed"`
	DisputeRaisedAt *int64 `json:"disputeRaisedAt,omitempty"`
	DisputeReason   string `json:"disputeReason,omitempty"`
}

type userEscrowsJSON struct {
	AsBuyer   []uint64 `json:"asBuyer"`
	AsSeller  []uint64 `json:"asSeller"`
	AsArbiter []uint64 `json:"asArbiter"`
}

type platformInfoJSON struct {
	Owner              string   `json:"owner"`
	TotalEscrows       uint64   `json:"totalEscrows"`
	PlatformFeeBps     uint32   `json:"platformFeeBps"`
	ArbiterFeeBps      uint32   `json:"arbiterFeeBps"`
	GracePeriodSeconds int64    `json:"gracePeriodSeconds"`
	Arbiters           []string `json:"arbiters"`
}

func escrowToJSON(esc *escrow.Escrow) escrowJSON {
	return escrowJSON{
		ID:               esc.ID,
		Buyer:            crypto.NewAddressFromRaw(esc.Buyer).String(),
		Seller:           crypto.NewAddressFromRaw(esc.Seller).String(),
		Arbiter:          crypto.NewAddressFromRaw(esc.Arbiter).String(),
		Amount:           esc.Amount.String(),
		Status:           esc.Status.String(),
		CreatedAt:        esc.CreatedAt,
		DeliveryDeadline: esc.DeliveryDeadline,
	}
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.node.GetEscrow(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}

func (s *Server) handleEscrowGetStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.node.GetEscrow(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := escrowStatusJSON{
		ID:              esc.ID,
		Description:     esc.Description,
		Status:          esc.Status.String(),
		BuyerApproved:   esc.BuyerApproved,
		SellerConfirmed: esc.SellerConfirmed,
		DisputeReason:   esc.DisputeReason,
	}
	if esc.DisputeRaisedAt != 0 {
		raisedAt := esc.DisputeRaisedAt
		result.DisputeRaisedAt = &raisedAt
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleEscrowListByParticipant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.EscrowsByParticipant(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, userEscrowsJSON{
		AsBuyer:   listing.AsBuyer,
		AsSeller:  listing.AsSeller,
		AsArbiter: listing.AsArbiter,
	})
}

func (s *Server) handleEscrowPlatformInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "no parameters expected")
		return
	}
	info, err := s.node.Platform()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	arbiters := make([]string, 0, len(info.Arbiters))
	for _, member := range info.Arbiters {
		arbiters = append(arbiters, crypto.NewAddressFromRaw(member).String())
	}
	writeResult(w, req.ID, platformInfoJSON{
		Owner:              crypto.NewAddressFromRaw(info.Owner).String(),
		TotalEscrows:       info.TotalEscrows,
		PlatformFeeBps:     info.PlatformFeeBps,
		ArbiterFeeBps:      info.ArbiterFeeBps,
		GracePeriodSeconds: info.GracePeriodSeconds,
		Arbiters:           arbiters,
	})
}

func (s *Server) handleEscrowListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := listEventsParams{}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "at most one parameter object expected")
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	limit := 100
	if params.Limit != nil {
		if *params.Limit <= 0 {
			writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", "limit must be positive")
			return
		}
		limit = *params.Limit
	}
	entries := s.node.Events().List(params.Prefix, limit)
	if entries == nil {
		entries = []*types.Event{}
	}
	writeResult(w, req.ID, entries)
}
