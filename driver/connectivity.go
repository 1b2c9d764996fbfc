package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mpenna/xrdrive/cli"
)

// Connectivity request/response envelope. The request carries a list of
// setVlan/removeVlan actions; every action gets an individual result.

type connectivityRequest struct {
	DriverRequest struct {
		Actions []connectivityAction `json:"actions"`
	} `json:"driverRequest"`
}

type connectivityAction struct {
	ActionId     string `json:"actionId"`
	Type         string `json:"type"` // "setVlan" / "removeVlan"
	ActionTarget struct {
		FullName    string `json:"fullName"`
		FullAddress string `json:"fullAddress"`
	} `json:"actionTarget"`
	ConnectionParams struct {
		VlanId string `json:"vlanId"` // single id or range "100-110"
		Mode   string `json:"mode"`
	} `json:"connectionParams"`
}

type connectivityResponse struct {
	DriverResponse struct {
		ActionResults []actionResult `json:"actionResults"`
	} `json:"driverResponse"`
}

type actionResult struct {
	ActionId     string `json:"actionId"`
	Type         string `json:"type"`
	Success      bool   `json:"success"`
	InfoMessage  string `json:"infoMessage,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ApplyConnectivityChanges executes a JSON connectivity request:
// per action, attach or detach a VLAN (single id or range) on a device
// interface via an l2transport sub-interface. Each action is committed
// on its own; one failing action does not abort the remaining ones.
func (d *Driver) ApplyConnectivityChanges(ctx context.Context, request string) (string, error) {

	d.logger.Printf("ApplyConnectivityChanges: %s: request=[%s]", d.cfg.Id, request)

	var req connectivityRequest
	if err := json.Unmarshal([]byte(request), &req); err != nil {
		return "", fmt.Errorf("ApplyConnectivityChanges: %s: bad request: %v", d.cfg.Id, err)
	}
	if len(req.DriverRequest.Actions) < 1 {
		return "", fmt.Errorf("ApplyConnectivityChanges: %s: empty action list", d.cfg.Id)
	}

	var resp connectivityResponse

	err := d.withSession(ctx, func(sess *cli.Session) error {
		for _, action := range req.DriverRequest.Actions {
			resp.DriverResponse.ActionResults = append(resp.DriverResponse.ActionResults, d.applyAction(ctx, sess, action))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ApplyConnectivityChanges: %s: %w", d.cfg.Id, err)
	}

	buf, marshalErr := json.Marshal(&resp)
	if marshalErr != nil {
		return "", fmt.Errorf("ApplyConnectivityChanges: %s: response: %v", d.cfg.Id, marshalErr)
	}

	return string(buf), nil
}

func (d *Driver) applyAction(ctx context.Context, sess *cli.Session, action connectivityAction) actionResult {

	result := actionResult{ActionId: action.ActionId, Type: action.Type}

	port := actionPort(action)
	if port == "" {
		result.ErrorMessage = "could not resolve target port"
		return result
	}

	vlan := strings.TrimSpace(action.ConnectionParams.VlanId)
	if vlan == "" {
		result.ErrorMessage = "missing vlan id"
		return result
	}

	var commands []string

	switch action.Type {
	case "setVlan":
		commands = []string{
			fmt.Sprintf("interface %s.%s l2transport", port, subInterfaceId(vlan)),
			fmt.Sprintf("encapsulation dot1q %s", vlan),
			"commit",
			"exit",
		}
	case "removeVlan":
		commands = []string{
			fmt.Sprintf("no interface %s.%s", port, subInterfaceId(vlan)),
			"commit",
		}
	default:
		result.ErrorMessage = fmt.Sprintf("unknown action type '%s'", action.Type)
		return result
	}

	if err := d.enterMode(ctx, sess, "config"); err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	for _, command := range commands {
		if _, err := sess.Run(ctx, command); err != nil {
			result.ErrorMessage = fmt.Sprintf("[%s]: %v", command, err)
			d.enterMode(ctx, sess, "enable")
			return result
		}
	}

	if err := d.enterMode(ctx, sess, "enable"); err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	result.Success = true
	result.InfoMessage = fmt.Sprintf("vlan %s %s on %s", vlan, pastTense(action.Type), port)

	return result
}

// actionPort extracts the interface name from the action target.
// FullName carries the resource path ("chassis/module/port-name");
// the last segment names the port, with dashes standing in for the
// slashes of the device interface name ("GigabitEthernet0-0-0-5").
func actionPort(action connectivityAction) string {
	name := action.ActionTarget.FullName
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "/")
}

// subInterfaceId derives the sub-interface number from a vlan spec:
// a range "100-110" uses its first id.
func subInterfaceId(vlan string) string {
	if i := strings.IndexByte(vlan, '-'); i > 0 {
		return vlan[:i]
	}
	return vlan
}

func pastTense(actionType string) string {
	if actionType == "removeVlan" {
		return "removed"
	}
	return "set"
}
