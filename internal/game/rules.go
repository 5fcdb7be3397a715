package game

import (
	"fmt"
	"sort"
)

// DealLayout 表示每個座位的發牌數，以及額外發給最高位的張數
type DealLayout struct {
	Base     int `json:"base"`
	TopExtra int `json:"top_extra"`
}

// Rules 保存依人數區分的各項規則表
type Rules struct {
	Roles     map[int][]Role     `json:"roles"`
	Deals     map[int]DealLayout `json:"deals"`
	Scores    map[int][]int      `json:"scores"`
	MaxRounds int                `json:"max_rounds"`
}

func DefaultRules() Rules {
	gd, ld, m, lp, gp := RoleGreaterDalmuti, RoleLesserDalmuti, RoleMerchant, RoleLesserPeon, RoleGreaterPeon
	return Rules{
		Roles: map[int][]Role{
			4: {gd, ld, lp, gp},
			5: {gd, ld, m, lp, gp},
			6: {gd, ld, m, m, lp, gp},
			7: {gd, ld, m, m, m, lp, gp},
			8: {gd, ld, m, m, m, m, lp, gp},
		},
		Deals: map[int]DealLayout{
			4: {Base: 20},
			5: {Base: 16},
			6: {Base: 13, TopExtra: 2},
			7: {Base: 11, TopExtra: 3},
			8: {Base: 10},
		},
		Scores: map[int][]int{
			4: {10, 8, 6, 4},
			5: {10, 8, 6, 5, 4},
			6: {10, 8, 6, 5, 4, 3},
			7: {10, 8, 6, 5, 4, 3, 2},
			8: {10, 8, 6, 5, 4, 3, 2, 1},
		},
	}
}

// PlayerCounts 由小到大列出支援的人數
func (r Rules) PlayerCounts() []int {
	counts := make([]int, 0, len(r.Roles))
	for n := range r.Roles {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	return counts
}

func (r Rules) MinPlayers() int {
	counts := r.PlayerCounts()
	if len(counts) == 0 {
		return 0
	}
	return counts[0]
}

func (r Rules) MaxPlayers() int {
	counts := r.PlayerCounts()
	if len(counts) == 0 {
		return 0
	}
	return counts[len(counts)-1]
}

func (r Rules) Supports(players int) bool {
	_, ok := r.Roles[players]
	return ok
}

// Validate 檢查各人數的規則表彼此一致
func (r Rules) Validate() error {
	if len(r.Roles) == 0 {
		return fmt.Errorf("%w: no role templates", ErrInvalidRules)
	}
	if r.MaxRounds < 0 {
		return fmt.Errorf("%w: max_rounds must not be negative", ErrInvalidRules)
	}
	for _, n := range r.PlayerCounts() {
		if n < 2 || n > MaxRank {
			return fmt.Errorf("%w: player count %d out of range", ErrInvalidRules, n)
		}
		if err := validateTemplate(r.Roles[n]); err != nil {
			return fmt.Errorf("%w: %d players: %v", ErrInvalidRules, n, err)
		}
		if len(r.Roles[n]) != n {
			return fmt.Errorf("%w: %d players: template has %d roles", ErrInvalidRules, n, len(r.Roles[n]))
		}
		layout, ok := r.Deals[n]
		if !ok {
			return fmt.Errorf("%w: %d players: no deal layout", ErrInvalidRules, n)
		}
		if layout.Base*n+layout.TopExtra != DeckSize || layout.Base <= 0 || layout.TopExtra < 0 {
			return fmt.Errorf("%w: %d players: layout deals %d of %d cards", ErrInvalidRules, n, layout.Base*n+layout.TopExtra, DeckSize)
		}
		if len(r.Scores[n]) != n {
			return fmt.Errorf("%w: %d players: score table has %d entries", ErrInvalidRules, n, len(r.Scores[n]))
		}
	}
	return nil
}

// validateTemplate 要求身份由高到低排列、兩端身份各至多一人，且小身份必須成對出現
func validateTemplate(roles []Role) error {
	counts := make(map[Role]int)
	for i, role := range roles {
		if _, ok := roleNames[role]; !ok {
			return fmt.Errorf("unknown role %d", role)
		}
		if i > 0 && role < roles[i-1] {
			return fmt.Errorf("roles out of order at %d", i)
		}
		counts[role]++
	}
	for _, role := range []Role{RoleGreaterDalmuti, RoleLesserDalmuti, RoleLesserPeon, RoleGreaterPeon} {
		if counts[role] > 1 {
			return fmt.Errorf("role %s held twice", role)
		}
	}
	if counts[RoleGreaterDalmuti] != counts[RoleGreaterPeon] {
		return fmt.Errorf("greater roles must come as a pair")
	}
	if counts[RoleLesserDalmuti] != counts[RoleLesserPeon] {
		return fmt.Errorf("lesser roles must come as a pair")
	}
	if counts[RoleLesserDalmuti] == 1 && counts[RoleGreaterDalmuti] == 0 {
		return fmt.Errorf("lesser pair requires the greater pair")
	}
	return nil
}
