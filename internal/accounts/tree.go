package accounts

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/grandlivre/internal/model"
)

// Valuation returns the opening and closing self balance of an account.
type Valuation func(a model.Account) (opening, closing model.Balance)

// Cumulative values an account by its opening balance and everything
// propagated to it so far.
func Cumulative(a model.Account) (opening, closing model.Balance) {
	opening = a.Opening()
	return opening, opening.Add(model.Balance{Debit: a.Debit, Credit: a.Credit})
}

const noParent = -1

type node struct {
	account  model.Account
	parent   int
	children []int
	opening  model.Balance
	closing  model.Balance
}

// Tree is an immutable arena of an enterprise's accounts. Nodes refer to each
// other by slot index, children hold their parent's slot and parents the
// slots of their children. Consolidated balances are computed on demand and
// never stored.
type Tree struct {
	nodes    []node
	byID     map[int64]int
	byNumber map[string]int
	roots    []int
}

// NewTree builds a tree valued with Cumulative.
func NewTree(accounts []model.Account) (*Tree, error) {
	return Build(accounts, Cumulative)
}

// Build arranges accounts into a tree, valuing each one with v. It fails with
// an InconsistentTreeError when a parent is unknown or the parent links loop.
func Build(accounts []model.Account, v Valuation) (*Tree, error) {
	sorted := make([]model.Account, len(accounts))
	copy(sorted, accounts)
	// Plain string order keeps a carried child such as 5120090 next to 512009.
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	t := &Tree{
		nodes:    make([]node, len(sorted)),
		byID:     make(map[int64]int, len(sorted)),
		byNumber: make(map[string]int, len(sorted)),
	}
	for i, a := range sorted {
		opening, closing := v(a)
		t.nodes[i] = node{account: a, parent: noParent, opening: opening, closing: closing}
		t.byID[a.ID] = i
		t.byNumber[a.Number] = i
	}
	for i := range t.nodes {
		a := t.nodes[i].account
		if !a.HasParent() {
			t.roots = append(t.roots, i)
			continue
		}
		p, ok := t.byID[a.ParentID]
		if !ok {
			return nil, &model.InconsistentTreeError{
				Reason: fmt.Sprintf("account %s references unknown parent %d", a.Number, a.ParentID),
			}
		}
		t.nodes[i].parent = p
		t.nodes[p].children = append(t.nodes[p].children, i)
	}
	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkAcyclic walks up from every node; a walk longer than the number of
// nodes can only come from a loop.
func (t *Tree) checkAcyclic() error {
	depth := make([]int, len(t.nodes)) // 0 = unknown, otherwise depth+1
	for i := range t.nodes {
		var path []int
		cur := i
		for cur != noParent && depth[cur] == 0 {
			path = append(path, cur)
			if len(path) > len(t.nodes) {
				return &model.InconsistentTreeError{
					Reason: fmt.Sprintf("account %s is its own ancestor", t.nodes[i].account.Number),
				}
			}
			cur = t.nodes[cur].parent
		}
		base := 0
		if cur != noParent {
			base = depth[cur]
		}
		for k := len(path) - 1; k >= 0; k-- {
			base++
			depth[path[k]] = base
		}
	}
	return nil
}

// Len returns the number of accounts in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Accounts returns every account ordered by number.
func (t *Tree) Accounts() []model.Account {
	out := make([]model.Account, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = n.account
	}
	return out
}

// Account returns the account with the given ID.
func (t *Tree) Account(accountID int64) (model.Account, bool) {
	i, ok := t.byID[accountID]
	if !ok {
		return model.Account{}, false
	}
	return t.nodes[i].account, true
}

// ByNumber returns the account with the given number.
func (t *Tree) ByNumber(number string) (model.Account, bool) {
	i, ok := t.byNumber[number]
	if !ok {
		return model.Account{}, false
	}
	return t.nodes[i].account, true
}

// HasChildren reports whether any account references accountID as its parent.
func (t *Tree) HasChildren(accountID int64) bool {
	i, ok := t.byID[accountID]
	return ok && len(t.nodes[i].children) > 0
}

// IsLeaf reports whether accountID exists and has no children.
func (t *Tree) IsLeaf(accountID int64) bool {
	i, ok := t.byID[accountID]
	return ok && len(t.nodes[i].children) == 0
}

// Parent returns the parent of accountID, if any.
func (t *Tree) Parent(accountID int64) (model.Account, bool) {
	i, ok := t.byID[accountID]
	if !ok || t.nodes[i].parent == noParent {
		return model.Account{}, false
	}
	return t.nodes[t.nodes[i].parent].account, true
}

// Children returns the direct children of accountID ordered by number.
func (t *Tree) Children(accountID int64) []model.Account {
	i, ok := t.byID[accountID]
	if !ok {
		return nil
	}
	out := make([]model.Account, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		out = append(out, t.nodes[c].account)
	}
	return out
}

// Roots returns the top-level accounts ordered by number.
func (t *Tree) Roots() []model.Account {
	out := make([]model.Account, 0, len(t.roots))
	for _, r := range t.roots {
		out = append(out, t.nodes[r].account)
	}
	return out
}

// Leaves returns every account without children ordered by number.
func (t *Tree) Leaves() []model.Account {
	var out []model.Account
	for _, n := range t.nodes {
		if len(n.children) == 0 {
			out = append(out, n.account)
		}
	}
	return out
}

// Self returns the account's own closing balance, excluding descendants.
func (t *Tree) Self(accountID int64) model.Balance {
	i, ok := t.byID[accountID]
	if !ok {
		return zeroBalance()
	}
	return t.nodes[i].closing
}

// SelfOpening returns the account's own opening balance, excluding descendants.
func (t *Tree) SelfOpening(accountID int64) model.Balance {
	i, ok := t.byID[accountID]
	if !ok {
		return zeroBalance()
	}
	return t.nodes[i].opening
}

// Consolidated returns the closing balance of accountID plus that of all its
// descendants. Unknown accounts consolidate to zero.
func (t *Tree) Consolidated(accountID int64) model.Balance {
	return t.sumSubtree(accountID, func(n *node) model.Balance { return n.closing })
}

// ConsolidatedOpening is Consolidated for opening balances.
func (t *Tree) ConsolidatedOpening(accountID int64) model.Balance {
	return t.sumSubtree(accountID, func(n *node) model.Balance { return n.opening })
}

// ConsolidatedDebit returns the debit side of Consolidated.
func (t *Tree) ConsolidatedDebit(accountID int64) decimal.Decimal {
	return t.Consolidated(accountID).Debit
}

// ConsolidatedCredit returns the credit side of Consolidated.
func (t *Tree) ConsolidatedCredit(accountID int64) decimal.Decimal {
	return t.Consolidated(accountID).Credit
}

// sumSubtree walks the subtree with an explicit stack so that deep charts
// cannot exhaust the goroutine stack.
func (t *Tree) sumSubtree(accountID int64, pick func(*node) model.Balance) model.Balance {
	total := zeroBalance()
	root, ok := t.byID[accountID]
	if !ok {
		return total
	}
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total = total.Add(pick(&t.nodes[i]))
		stack = append(stack, t.nodes[i].children...)
	}
	return total
}

// ConsolidateAll returns the consolidated opening and closing balance of every
// account in one post-order pass.
func (t *Tree) ConsolidateAll() (opening, closing map[int64]model.Balance) {
	open := make([]model.Balance, len(t.nodes))
	shut := make([]model.Balance, len(t.nodes))
	for i, n := range t.nodes {
		open[i], shut[i] = n.opening, n.closing
	}

	// Children are folded into parents once every child of the parent is done.
	pending := make([]int, len(t.nodes))
	var ready []int
	for i, n := range t.nodes {
		pending[i] = len(n.children)
		if pending[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		i := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		p := t.nodes[i].parent
		if p == noParent {
			continue
		}
		open[p] = open[p].Add(open[i])
		shut[p] = shut[p].Add(shut[i])
		pending[p]--
		if pending[p] == 0 {
			ready = append(ready, p)
		}
	}

	opening = make(map[int64]model.Balance, len(t.nodes))
	closing = make(map[int64]model.Balance, len(t.nodes))
	for i, n := range t.nodes {
		opening[n.account.ID] = open[i]
		closing[n.account.ID] = shut[i]
	}
	return opening, closing
}

func zeroBalance() model.Balance {
	return model.Balance{Debit: decimal.Zero, Credit: decimal.Zero}
}
