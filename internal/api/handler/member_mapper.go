package handler

import (
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

// --- Request → Service input ---

func toAddMemberInput(req createMemberRequest) ports.AddMemberInput {
	return ports.AddMemberInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Status:  req.Status,
		Role:    req.Role,
		Doc:     req.Doc,
		Memo:    req.Memo,
	}
}

// --- Domain → Response ---

func toMemberResponse(m domain.MemberRecord) memberResponse {
	return memberResponse{
		ID:      m.ID,
		Name:    m.Name,
		Email:   m.Email,
		Phone:   m.Phone,
		Address: m.Address,
		Status:  string(m.Status),
		Role:    string(m.Role),
		Doc:     string(m.Doc),
		Memo:    m.Memo,
	}
}

func toListMembersResponse(records []domain.MemberRecord) listMembersResponse {
	items := make([]memberResponse, 0, len(records))
	for _, m := range records {
		items = append(items, toMemberResponse(m))
	}
	return listMembersResponse{Items: items, Total: len(items)}
}

func toImportResponse(res *ports.ImportResult) importResponse {
	out := importResponse{Skipped: []string{}}
	if res == nil {
		return out
	}
	out.Imported = res.Imported
	if res.Skipped != nil {
		out.Skipped = res.Skipped
	}
	return out
}
