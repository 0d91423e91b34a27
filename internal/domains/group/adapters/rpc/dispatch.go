package rpc

import (
	"encoding/json"
	"errors"
	"math"

	"aim-chat/go-backend/internal/domains/contracts"
	"aim-chat/go-backend/internal/domains/rpckit"
)

const (
	maxMessageListLimit  = 1000
	maxMessageListOffset = 1_000_000
)

func Dispatch(service contracts.DaemonService, method string, rawParams json.RawMessage) (any, *rpckit.Error, bool) {
	return dispatchGroupRPC(service, method, rawParams)
}

func dispatchGroupRPC(service contracts.DaemonService, method string, rawParams json.RawMessage) (any, *rpckit.Error, bool) {
	switch method {
	case "group.create":
		result, rpcErr := callWithSingleStringParam(rawParams, -32100, func(title string) (any, error) {
			return service.CreateGroup(title)
		})
		return result, rpcErr, true
	case "group.get":
		result, rpcErr := callWithSingleStringParam(rawParams, -32101, func(groupID string) (any, error) {
			return service.GetGroup(groupID)
		})
		return result, rpcErr, true
	case "group.list":
		result, rpcErr := callWithoutParams(-32102, func() (any, error) {
			return service.ListGroups()
		})
		return result, rpcErr, true
	case "group.members.list":
		result, rpcErr := callWithSingleStringParam(rawParams, -32103, func(groupID string) (any, error) {
			return service.ListGroupMembers(groupID)
		})
		return result, rpcErr, true
	case "group.leave":
		result, rpcErr := callWithSingleStringParam(rawParams, -32104, func(groupID string) (any, error) {
			left, err := service.LeaveGroup(groupID)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"left": left}, nil
		})
		return result, rpcErr, true
	case "group.invite":
		result, rpcErr := callWithTwoStringParams(rawParams, -32110, func(groupID, memberID string) (any, error) {
			return service.InviteToGroup(groupID, memberID)
		})
		return result, rpcErr, true
	case "group.accept_invite":
		result, rpcErr := callWithSingleStringParam(rawParams, -32111, func(groupID string) (any, error) {
			accepted, err := service.AcceptGroupInvite(groupID)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"accepted": accepted}, nil
		})
		return result, rpcErr, true
	case "group.decline_invite":
		result, rpcErr := callWithSingleStringParam(rawParams, -32112, func(groupID string) (any, error) {
			declined, err := service.DeclineGroupInvite(groupID)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"declined": declined}, nil
		})
		return result, rpcErr, true
	case "group.remove_member":
		result, rpcErr := callWithTwoStringParams(rawParams, -32113, func(groupID, memberID string) (any, error) {
			removed, err := service.RemoveGroupMember(groupID, memberID)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"removed": removed}, nil
		})
		return result, rpcErr, true
	case "group.promote":
		result, rpcErr := callWithTwoStringParams(rawParams, -32114, func(groupID, memberID string) (any, error) {
			return service.PromoteGroupMember(groupID, memberID)
		})
		return result, rpcErr, true
	case "group.demote":
		result, rpcErr := callWithTwoStringParams(rawParams, -32115, func(groupID, memberID string) (any, error) {
			return service.DemoteGroupMember(groupID, memberID)
		})
		return result, rpcErr, true
	case "group.send":
		result, rpcErr := callWithTwoStringParams(rawParams, -32120, func(groupID, content string) (any, error) {
			return service.SendGroupMessage(groupID, content)
		})
		return result, rpcErr, true
	case "group.thread.send":
		result, rpcErr := callWithThreeStringParams(rawParams, -32124, func(groupID, content, threadID string) (any, error) {
			return service.SendGroupMessageInThread(groupID, content, threadID)
		})
		return result, rpcErr, true
	case "group.thread.list":
		result, rpcErr := callWithThreadListParams(rawParams, -32125, func(groupID, threadID string, limit, offset int) (any, error) {
			return service.ListGroupMessagesByThread(groupID, threadID, limit, offset)
		})
		return result, rpcErr, true
	case "group.messages.list":
		result, rpcErr := callWithMessageListParams(rawParams, -32121, func(groupID string, limit, offset int) (any, error) {
			return service.ListGroupMessages(groupID, limit, offset)
		})
		return result, rpcErr, true
	case "group.message.status":
		result, rpcErr := callWithTwoStringParams(rawParams, -32122, func(groupID, messageID string) (any, error) {
			return service.GetGroupMessageStatus(groupID, messageID)
		})
		return result, rpcErr, true
	case "group.message.delete":
		result, rpcErr := callWithTwoStringParams(rawParams, -32123, func(groupID, messageID string) (any, error) {
			if err := service.DeleteGroupMessage(groupID, messageID); err != nil {
				return nil, err
			}
			return map[string]bool{"deleted": true}, nil
		})
		return result, rpcErr, true
	case "group.keypackage.rotate":
		result, rpcErr := callWithTwoStringParams(rawParams, -32130, func(installationID, inboxID string) (any, error) {
			keyPackage, rotated, err := service.RotateKeyPackage(installationID, inboxID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"rotated": rotated, "key_package": keyPackage}, nil
		})
		return result, rpcErr, true
	case "group.keypackage.publish_last_resort":
		result, rpcErr := callWithTwoStringParams(rawParams, -32131, func(installationID, inboxID string) (any, error) {
			return service.PublishLastResortKeyPackage(installationID, inboxID)
		})
		return result, rpcErr, true
	case "group.dm.find_or_create":
		result, rpcErr := callWithTwoStringParams(rawParams, -32147, func(counterpartyInboxID, counterpartyInstallationID string) (any, error) {
			group, created, err := service.FindOrCreateDM(counterpartyInboxID, counterpartyInstallationID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"group": group, "created": created}, nil
		})
		return result, rpcErr, true
	case "group.mls.add_member":
		result, rpcErr := callWithMemberAddParams(rawParams, -32140, func(groupID, memberID, installationID, role string) (any, error) {
			return service.AddGroupMemberMLS(groupID, memberID, installationID, role)
		})
		return result, rpcErr, true
	case "group.mls.remove_member":
		result, rpcErr := callWithTwoStringParams(rawParams, -32141, func(groupID, memberID string) (any, error) {
			return service.RemoveGroupMemberMLS(groupID, memberID)
		})
		return result, rpcErr, true
	case "group.mls.update_metadata":
		result, rpcErr := callWithFourStringParams(rawParams, -32142, func(groupID, title, description, avatar string) (any, error) {
			return service.UpdateGroupMetadataMLS(groupID, title, description, avatar)
		})
		return result, rpcErr, true
	case "group.mls.update_admins":
		result, rpcErr := callWithThreeStringParams(rawParams, -32149, func(groupID, targetInboxID, action string) (any, error) {
			return service.UpdateGroupAdminListMLS(groupID, targetInboxID, action)
		})
		return result, rpcErr, true
	case "group.mls.update_permission":
		result, rpcErr := callWithTwoStringParams(rawParams, -32150, func(groupID, policySetJSON string) (any, error) {
			return service.UpdateGroupPermissionMLS(groupID, policySetJSON)
		})
		return result, rpcErr, true
	case "group.mls.update_min_version":
		result, rpcErr := callWithSingleStringParam(rawParams, -32148, func(groupID string) (any, error) {
			return service.UpdateGroupMinVersionToMatchSelf(groupID)
		})
		return result, rpcErr, true
	case "group.mls.leave":
		result, rpcErr := callWithSingleStringParam(rawParams, -32143, func(groupID string) (any, error) {
			return service.LeaveGroupMLS(groupID)
		})
		return result, rpcErr, true
	case "group.mls.schedule_removals":
		result, rpcErr := callWithSingleStringParam(rawParams, -32144, func(groupID string) (any, error) {
			return service.ScheduleGroupAdminRemovals(groupID)
		})
		return result, rpcErr, true
	case "group.consent.set":
		result, rpcErr := callWithThreeStringParams(rawParams, -32145, func(entityType, entityID, state string) (any, error) {
			return service.SetConsent(entityType, entityID, state)
		})
		return result, rpcErr, true
	case "group.consent.get":
		result, rpcErr := callWithTwoStringParams(rawParams, -32146, func(entityType, entityID string) (any, error) {
			state, err := service.GetConsent(entityType, entityID)
			if err != nil {
				return nil, err
			}
			return map[string]string{"state": string(state)}, nil
		})
		return result, rpcErr, true
	case "group.sync.welcomes":
		result, rpcErr := callWithoutParams(-32132, func() (any, error) {
			joined, err := service.SyncMLSWelcomes()
			if err != nil {
				return nil, err
			}
			return map[string]any{"joined": joined}, nil
		})
		return result, rpcErr, true
	case "group.sync.groups":
		result, rpcErr := callWithoutParams(-32133, func() (any, error) {
			errs := service.SyncMLSGroups()
			failed := make([]string, 0, len(errs))
			for _, err := range errs {
				failed = append(failed, err.Error())
			}
			return map[string]any{"errors": failed}, nil
		})
		return result, rpcErr, true
	default:
		return nil, nil, false
	}
}

func callWithoutParams(serviceErrCode int, call func() (any, error)) (any, *rpckit.Error) {
	result, err := call()
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

func callWithSingleStringParam(rawParams json.RawMessage, serviceErrCode int, call func(string) (any, error)) (any, *rpckit.Error) {
	param, err := decodeSingleStringParam(rawParams)
	if err != nil {
		return nil, rpckit.InvalidParams()
	}
	result, err := call(param)
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

func callWithTwoStringParams(rawParams json.RawMessage, serviceErrCode int, call func(string, string) (any, error)) (any, *rpckit.Error) {
	a, b, err := decodeTwoStringParams(rawParams)
	if err != nil {
		return nil, rpckit.InvalidParams()
	}
	result, err := call(a, b)
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

func callWithThreeStringParams(rawParams json.RawMessage, serviceErrCode int, call func(string, string, string) (any, error)) (any, *rpckit.Error) {
	var arr []string
	if err := json.Unmarshal(rawParams, &arr); err != nil || len(arr) != 3 || arr[0] == "" || arr[1] == "" || arr[2] == "" {
		return nil, rpckit.InvalidParams()
	}
	result, err := call(arr[0], arr[1], arr[2])
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

func callWithFourStringParams(rawParams json.RawMessage, serviceErrCode int, call func(string, string, string, string) (any, error)) (any, *rpckit.Error) {
	var arr []string
	if err := json.Unmarshal(rawParams, &arr); err != nil || len(arr) != 4 || arr[0] == "" || arr[1] == "" {
		return nil, rpckit.InvalidParams()
	}
	result, err := call(arr[0], arr[1], arr[2], arr[3])
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

// callWithMemberAddParams accepts [groupID, memberID, installationID] with
// an optional trailing role.
func callWithMemberAddParams(rawParams json.RawMessage, serviceErrCode int, call func(groupID, memberID, installationID, role string) (any, error)) (any, *rpckit.Error) {
	var arr []string
	if err := json.Unmarshal(rawParams, &arr); err != nil || len(arr) < 3 || len(arr) > 4 || arr[0] == "" || arr[1] == "" || arr[2] == "" {
		return nil, rpckit.InvalidParams()
	}
	role := ""
	if len(arr) == 4 {
		role = arr[3]
	}
	result, err := call(arr[0], arr[1], arr[2], role)
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

func callWithThreadListParams(
	rawParams json.RawMessage,
	serviceErrCode int,
	call func(groupID, threadID string, limit, offset int) (any, error),
) (any, *rpckit.Error) {
	var arr []any
	if err := json.Unmarshal(rawParams, &arr); err != nil || len(arr) != 4 {
		return nil, rpckit.InvalidParams()
	}
	groupID, ok := arr[0].(string)
	if !ok || groupID == "" {
		return nil, rpckit.InvalidParams()
	}
	threadID, ok := arr[1].(string)
	if !ok || threadID == "" {
		return nil, rpckit.InvalidParams()
	}
	limit, err := decodeStrictNonNegativeInt(arr[2])
	if err != nil {
		return nil, rpckit.InvalidParams()
	}
	offset, err := decodeStrictNonNegativeInt(arr[3])
	if err != nil {
		return nil, rpckit.InvalidParams()
	}
	if limit > maxMessageListLimit || offset > maxMessageListOffset {
		return nil, rpckit.InvalidParams()
	}
	result, callErr := call(groupID, threadID, limit, offset)
	if callErr != nil {
		return nil, rpckit.ServiceError(serviceErrCode, callErr)
	}
	return result, nil
}

func callWithMessageListParams(
	rawParams json.RawMessage,
	serviceErrCode int,
	call func(contactID string, limit, offset int) (any, error),
) (any, *rpckit.Error) {
	contactID, limit, offset, err := decodeMessageListParams(rawParams)
	if err != nil {
		return nil, rpckit.InvalidParams()
	}
	result, err := call(contactID, limit, offset)
	if err != nil {
		return nil, rpckit.ServiceError(serviceErrCode, err)
	}
	return result, nil
}

func decodeSingleStringParam(raw json.RawMessage) (string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 && arr[0] != "" {
		return arr[0], nil
	}
	return "", errors.New("invalid params")
}

func decodeTwoStringParams(raw json.RawMessage) (string, string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 2 && arr[0] != "" && arr[1] != "" {
		return arr[0], arr[1], nil
	}
	return "", "", errors.New("invalid params")
}

func decodeMessageListParams(raw json.RawMessage) (string, int, int, error) {
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 3 {
		return "", 0, 0, errors.New("invalid params")
	}
	contactID, ok := arr[0].(string)
	if !ok || contactID == "" {
		return "", 0, 0, errors.New("invalid params")
	}
	limit, err := decodeStrictNonNegativeInt(arr[1])
	if err != nil {
		return "", 0, 0, errors.New("invalid params")
	}
	offset, err := decodeStrictNonNegativeInt(arr[2])
	if err != nil {
		return "", 0, 0, errors.New("invalid params")
	}
	if limit > maxMessageListLimit || offset > maxMessageListOffset {
		return "", 0, 0, errors.New("invalid params")
	}
	return contactID, limit, offset, nil
}

func decodeStrictNonNegativeInt(raw any) (int, error) {
	v, ok := raw.(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("invalid params")
	}
	if v < 0 || math.Trunc(v) != v {
		return 0, errors.New("invalid params")
	}
	maxInt := float64(^uint(0) >> 1)
	if v > maxInt {
		return 0, errors.New("invalid params")
	}
	return int(v), nil
}
