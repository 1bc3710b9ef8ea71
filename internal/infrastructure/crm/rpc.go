package crm

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// The CRM's legacy interface takes a form-encoded body carrying a JSON
// envelope of the shape {"method": "...", "params": {...}}. Every call this
// engine issues is modeled as a constructor below, one variant per method
// name, so the envelope construction stays centrally testable.

// RPCCall is one legacy-interface invocation.
type RPCCall struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Encode renders the call into the form values the legacy endpoint expects.
func (c RPCCall) Encode() (url.Values, error) {
	envelope, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("crm: failed to encode rpc envelope: %w", err)
	}
	values := url.Values{}
	values.Set("io_mode", "json")
	values.Set("do_in", string(envelope))
	return values, nil
}

// UpdateDeliveryStepCall advances a sales document's delivery step.
func UpdateDeliveryStepCall(docID int64, step reconcile.DeliveryStep) RPCCall {
	return RPCCall{
		Method: "Document.updateDeliveryStep",
		Params: map[string]any{
			"docid": docID,
			"document": map[string]any{
				"step": step.String(),
			},
		},
	}
}

// CreateEntityCall creates a prospect or client from the entity payload.
func CreateEntityCall(kind reconcile.CompanyKind, payload reconcile.CRMEntityPayload) RPCCall {
	return RPCCall{Method: entityMethod(kind, "create"), Params: payload}
}

// UpdateEntityCall updates an existing prospect or client. The legacy
// interface keys prospects by "id" and clients by "clientid".
func UpdateEntityCall(kind reconcile.CompanyKind, entityID int64, payload reconcile.CRMEntityPayload) RPCCall {
	params := map[string]any{
		"third":   payload.Third,
		"contact": payload.Contact,
		"address": payload.Address,
	}
	if kind == reconcile.KindProspect {
		params["id"] = entityID
	} else {
		params["clientid"] = entityID
	}
	return RPCCall{Method: entityMethod(kind, "update"), Params: params}
}

// TransformToCustomerCall converts a prospect into a customer.
func TransformToCustomerCall(thirdID int64) RPCCall {
	return RPCCall{
		Method: "Prospects.transformToCustomer",
		Params: map[string]any{
			"thirdid":                      thirdID,
			"enableCustomfieldsOnCustomer": "N",
		},
	}
}

// TransformToProspectCall converts a customer back into a prospect.
func TransformToProspectCall(thirdID int64) RPCCall {
	return RPCCall{
		Method: "Client.transformToProspect",
		Params: map[string]any{
			"thirdid":                      thirdID,
			"enableCustomfieldsOnProspect": "N",
		},
	}
}

// AddContactCall attaches a contact to a prospect or client.
func AddContactCall(kind reconcile.CompanyKind, entityID int64, contact reconcile.Contact) RPCCall {
	name := contact.LastName
	if name == "" {
		name = contact.FirstName
	}
	idKey := "clientid"
	if kind == reconcile.KindProspect {
		idKey = "prospectid"
	}
	return RPCCall{
		Method: entityMethod(kind, "addContact"),
		Params: map[string]any{
			idKey: entityID,
			"contact": map[string]any{
				"name":  name,
				"email": contact.Email,
				"tel":   contact.Phone,
			},
		},
	}
}

// entityMethod builds the "<Prospects|Client>.<op>" method name.
func entityMethod(kind reconcile.CompanyKind, op string) string {
	if kind == reconcile.KindProspect {
		return "Prospects." + op
	}
	return "Client." + op
}

// parseEntityID extracts the created entity id from a legacy-interface
// response. Prospect creation returns the id as a bare value; client
// creation nests it under client_id.
func parseEntityID(kind reconcile.CompanyKind, response json.RawMessage) (int64, error) {
	if kind == reconcile.KindProspect {
		var id int64
		if err := json.Unmarshal(response, &id); err == nil {
			return id, nil
		}
		var s string
		if err := json.Unmarshal(response, &s); err == nil {
			return strconv.ParseInt(s, 10, 64)
		}
		return 0, fmt.Errorf("%w: unexpected prospect id %s", ErrInvalidResponse, response)
	}

	var wrapped struct {
		ClientID int64 `json:"client_id"`
	}
	if err := json.Unmarshal(response, &wrapped); err != nil || wrapped.ClientID == 0 {
		return 0, fmt.Errorf("%w: unexpected client id %s", ErrInvalidResponse, response)
	}
	return wrapped.ClientID, nil
}
