package repo

import (
	"fmt"
	"strings"

	"github.com/aq2208/storefront-api/internal/usecase"
)

// orderWhere translates the criteria into a WHERE clause over the
// orders o JOIN users u relation. Criteria are ANDed.
func orderWhere(f usecase.OrderFilter) (string, []any, error) {
	var conds []string
	var args []any
	for _, c := range f {
		switch v := c.(type) {
		case usecase.ByOwner:
			conds = append(conds, `o.user_id = ?`)
			args = append(args, v.UserID)
		case usecase.ByStatus:
			conds = append(conds, `o.status = ?`)
			args = append(args, string(v.Status))
		case usecase.ByCreatedRange:
			if v.Start != nil {
				conds = append(conds, `o.created_at >= ?`)
				args = append(args, v.Start.UTC())
			}
			if v.End != nil {
				conds = append(conds, `o.created_at <= ?`)
				args = append(args, v.End.UTC())
			}
		case usecase.ByUsernameContains:
			conds = append(conds, `LOWER(u.username) LIKE ? ESCAPE '!'`)
			args = append(args, likePattern(v.Substring))
		default:
			return "", nil, fmt.Errorf("unsupported order criterion %T", c)
		}
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
