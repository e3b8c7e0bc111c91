package mir

import (
	"sort"

	"github.com/orizon-lang/orizon/internal/diagnostic"
	"github.com/orizon-lang/orizon/internal/hir"
	"github.com/orizon-lang/orizon/internal/position"
)

// loopCtx is the shared shape spec §4.4 asks for: loop headers and switch
// dispatch sites both carry a break target, but only loops carry a continue
// target (IsSwitch ones leave ContinueTarget nil).
type loopCtx struct {
	Header         *hir.BasicBlock
	IsSwitch       bool
	BreakTarget    *hir.BasicBlock
	ContinueTarget *hir.BasicBlock
	UserLabel      string
	Parent         *loopCtx

	// Entries holds every case/default dispatch block a switch's single
	// BreakTarget (its end block) serves; loops leave this nil and rely on
	// Header alone, since a loop has exactly one entry.
	Entries []*hir.BasicBlock
}

// closureBinding records that a local variable holds a closure value: a
// later call through that variable's name must be rewritten to call
// InnerName directly with EnvPlace prepended as its first argument (spec
// §4.4's call-site rewrite).
type closureBinding struct {
	InnerName string
	EnvPlace  *Place
}

// funcBuilder carries the working state for lowering one hir.Function.
type funcBuilder struct {
	hirMod *hir.Module
	hirFn  *hir.Function
	mirFn  *Function
	diags  *diagnostic.Collector

	blockByLabel map[string]*BasicBlock
	mirBlockOf   map[*hir.BasicBlock]*BasicBlock

	placeOf map[hir.Value]*Place
	nextTmp int

	dom   map[*hir.BasicBlock]map[*hir.BasicBlock]bool
	idom  map[*hir.BasicBlock]*hir.BasicBlock
	ctxOf map[*hir.BasicBlock]*loopCtx

	envPlace         *Place
	capturedByName   map[string]*Place // this function's own Copy-In locals, by captured name
	closureByVarName map[string]*closureBinding
	callEnvPlace     map[*hir.Instruction]*Place // OpCall instr -> its extracted env place, once materialized
}

// GenerateMIR lowers hirModule's functions into Nova's place-based MIR,
// applying dominance analysis, loop/switch structure recovery, break/continue
// resolution, and closure-environment materialization per spec §3/§4.4.
func GenerateMIR(hirModule *hir.Module, moduleName string) (*Module, *diagnostic.Collector) {
	diags := diagnostic.NewCollector(diagnostic.StageMIR)
	mod := NewModule(moduleName)

	for name, st := range hirModule.StructTypes {
		mod.StructTypes[name] = translateStructType(st)
	}

	for name, env := range hirModule.ClosureEnvironments {
		mod.StructTypes[name+".env"] = translateStructType(env)
	}

	for _, hirFn := range hirModule.Functions {
		fb := &funcBuilder{
			hirMod:           hirModule,
			hirFn:            hirFn,
			diags:            diags,
			blockByLabel:     make(map[string]*BasicBlock),
			mirBlockOf:       make(map[*hir.BasicBlock]*BasicBlock),
			placeOf:          make(map[hir.Value]*Place),
			capturedByName:   make(map[string]*Place),
			closureByVarName: make(map[string]*closureBinding),
			callEnvPlace:     make(map[*hir.Instruction]*Place),
		}

		mod.Functions = append(mod.Functions, fb.build())
	}

	return mod, diags
}

func translateStructType(st *hir.StructType) *StructType {
	out := &StructType{Name: st.Name, FieldNames: append([]string(nil), st.FieldNames...)}
	for _, ft := range st.FieldTypes {
		out.FieldTypes = append(out.FieldTypes, TranslateKind(ft))
	}

	return out
}

// ---- top-level per-function driver ----

func (fb *funcBuilder) build() *Function {
	fb.mirFn = &Function{Name: fb.hirFn.Name, Linkage: fb.hirFn.Linkage}

	fb.computeDominance()
	fb.identifyLoops()
	fb.identifySwitches()
	fb.linkParents()

	// Skeleton pass: create every MIR block up front (same order, same
	// labels) so forward branches resolve without a second lookup pass.
	for _, hb := range fb.hirFn.Blocks {
		mb := &BasicBlock{Label: hb.Label}
		fb.mirFn.Blocks = append(fb.mirFn.Blocks, mb)
		fb.mirBlockOf[hb] = mb
		fb.blockByLabel[hb.Label] = mb
	}

	fb.mirFn.Return = &Place{PKind: PlaceReturn, Name: "_0", Type: fb.inferReturnKind()}
	fb.mirFn.ReturnType = fb.mirFn.Return.Type

	for i, p := range fb.hirFn.Params {
		place := &Place{PKind: PlaceArgument, Index: i + 1, Type: TranslateKind(p.ValType), Name: p.Name}
		fb.mirFn.Params = append(fb.mirFn.Params, place)
		fb.placeOf[p] = place

		if p.Name == "__env" {
			fb.envPlace = place
		}
	}

	fb.materializeCopyIns()

	for _, hb := range fb.hirFn.Blocks {
		fb.lowerBlock(hb)
	}

	return fb.mirFn
}

func (fb *funcBuilder) inferReturnKind() Kind {
	for _, hb := range fb.hirFn.Blocks {
		for _, instr := range hb.Instructions {
			if instr.Op == hir.OpReturn && len(instr.Operands) == 1 {
				return TranslateKind(instr.Operands[0].Type())
			}
		}
	}

	return KindVoid
}

func (fb *funcBuilder) newLocal(kind Kind, name string) *Place {
	fb.nextTmp++

	place := &Place{PKind: PlaceTemp, Index: fb.nextTmp, Type: kind, Name: name}
	fb.mirFn.Locals = append(fb.mirFn.Locals, place)

	return place
}

// newStorageLocal is newLocal for a place that needs a real stack slot in
// codegen: an HIR Alloca-backed source variable or a closure Copy-In local,
// either of which the function body may reassign more than once.
func (fb *funcBuilder) newStorageLocal(kind Kind, name string) *Place {
	place := fb.newLocal(kind, name)
	place.Storage = true

	return place
}

// materializeCopyIns implements Copy-In: at entry, every captured variable
// this function's __env parameter carries gets its own local, populated by
// reading the environment struct, per spec §4.4.
func (fb *funcBuilder) materializeCopyIns() {
	if fb.envPlace == nil {
		return
	}

	names := fb.hirMod.ClosureCapturedVars[fb.hirFn.Name]
	values := fb.hirMod.ClosureCapturedVarValues[fb.hirFn.Name]
	entry := fb.mirFn.Entry()

	for i, name := range names {
		fieldType := KindI64
		if env, ok := fb.hirMod.ClosureEnvironments[fb.hirFn.Name]; ok && i < len(env.FieldTypes) {
			fieldType = TranslateKind(env.FieldTypes[i])
		}

		place := fb.newStorageLocal(fieldType, "captured_"+name)
		fb.capturedByName[name] = place

		entry.Statements = append(entry.Statements, &StorageLiveStmt{Place: place})
		entry.Statements = append(entry.Statements, &AssignStmt{
			Dest: place,
			RHS: &AggregateRvalue{
				Kind: AggGetField, Base: &CopyOperand{Place: fb.envPlace},
				FieldIndex: i, FieldName: name,
			},
		})

		// Seed placeOf with the *outer* Alloca instruction pointer this
		// captured name resolves to (internal/hir/builder.go declares the
		// inner scope's entry against that same pointer), so every Load/
		// Store inside this function's body that references it resolves
		// to the Copy-In local instead.
		if i < len(values) {
			if outerAlloca, ok := values[i].(*hir.Instruction); ok {
				fb.placeOf[outerAlloca] = place
			}
		}
	}
}

// emitCopyOuts writes every captured local back into the environment
// struct immediately before a return, per spec §4.4's Copy-Out.
func (fb *funcBuilder) emitCopyOuts(mb *BasicBlock) {
	if fb.envPlace == nil {
		return
	}

	names := fb.hirMod.ClosureCapturedVars[fb.hirFn.Name]
	for i, name := range names {
		place, ok := fb.capturedByName[name]
		if !ok {
			continue
		}

		discard := fb.newLocal(KindVoid, "_")
		mb.Statements = append(mb.Statements, &AssignStmt{
			Dest: discard,
			RHS: &AggregateRvalue{
				Kind: AggSetField, Base: &CopyOperand{Place: fb.envPlace},
				FieldIndex: i, FieldName: name, Value: &CopyOperand{Place: place},
			},
		})
	}
}

// ---- dominance, loop, and switch structure ----

func (fb *funcBuilder) computeDominance() {
	blocks := fb.hirFn.Blocks
	fb.dom = make(map[*hir.BasicBlock]map[*hir.BasicBlock]bool, len(blocks))

	if len(blocks) == 0 {
		return
	}

	entry := blocks[0]
	all := make(map[*hir.BasicBlock]bool, len(blocks))

	for _, b := range blocks {
		all[b] = true
	}

	for _, b := range blocks {
		if b == entry {
			fb.dom[b] = map[*hir.BasicBlock]bool{entry: true}
		} else {
			fb.dom[b] = cloneSet(all)
		}
	}

	changed := true
	for changed {
		changed = false

		for _, b := range blocks {
			if b == entry {
				continue
			}

			var inter map[*hir.BasicBlock]bool

			for _, p := range b.Preds {
				if inter == nil {
					inter = cloneSet(fb.dom[p])
				} else {
					for k := range inter {
						if !fb.dom[p][k] {
							delete(inter, k)
						}
					}
				}
			}

			// A block with no predecessors (such as the fresh block opened
			// after a break or continue) is unreachable: the intersection over
			// its empty predecessor set stays the full set, so it never
			// narrows the dominator set of a block it branches to.
			if inter == nil {
				inter = cloneSet(all)
			}

			inter[b] = true

			if !setsEqual(inter, fb.dom[b]) {
				fb.dom[b] = inter
				changed = true
			}
		}
	}

	fb.idom = make(map[*hir.BasicBlock]*hir.BasicBlock, len(blocks))

	for _, b := range blocks {
		if b == entry {
			continue
		}

		var best *hir.BasicBlock

		for d := range fb.dom[b] {
			if d == b {
				continue
			}

			if best == nil || len(fb.dom[d]) > len(fb.dom[best]) {
				best = d
			}
		}

		fb.idom[b] = best
	}
}

func cloneSet(s map[*hir.BasicBlock]bool) map[*hir.BasicBlock]bool {
	out := make(map[*hir.BasicBlock]bool, len(s))
	for k := range s {
		out[k] = true
	}

	return out
}

func setsEqual(a, b map[*hir.BasicBlock]bool) bool {
	if len(a) != len(b) {
		return false
	}

	for k := range a {
		if !b[k] {
			return false
		}
	}

	return true
}

// reachableWithout reports whether target is reachable from start following
// Succs edges, without passing through avoid.
func reachableWithout(start, target, avoid *hir.BasicBlock) bool {
	if start == target {
		return true
	}

	visited := map[*hir.BasicBlock]bool{avoid: true}

	queue := []*hir.BasicBlock{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if visited[cur] {
			continue
		}

		visited[cur] = true

		if cur == target {
			return true
		}

		queue = append(queue, cur.Succs...)
	}

	return false
}

// identifyLoops finds every loop header via the back-edge test (H dominates
// a predecessor P of H — P is the latch), then recovers its structure per
// spec §4.4's "two-part discriminator". The header's actual two-way test
// isn't always H itself: a `do-while` loop's header (per dominance) is its
// body block, which has a single successor leading to the real test block.
// So the discriminator walks forward from H along single-successor edges to
// find the dispatch block D, splits D's two successors into the one that
// can still reach the latch (the loop continues) and the one that can't
// (the break target), and derives the continue target: if the continuing
// successor IS the latch (`while`/`do-while`, where the loop's own back
// edge has no separate update step), continuing re-enters the dispatch
// block; otherwise (`for`, with a distinct update block as the latch)
// continuing must run the latch block first.
func (fb *funcBuilder) identifyLoops() {
	fb.ctxOf = make(map[*hir.BasicBlock]*loopCtx)

	type found struct {
		ctx    *loopCtx
		domLen int
	}

	var headers []found

	for _, h := range fb.hirFn.Blocks {
		var latch *hir.BasicBlock

		for _, p := range h.Preds {
			if fb.dom[p][h] {
				latch = p

				break
			}
		}

		if latch == nil {
			continue
		}

		d := h
		for i := 0; i < len(fb.hirFn.Blocks) && len(d.Succs) == 1; i++ {
			d = d.Succs[0]
		}

		if len(d.Succs) != 2 {
			continue
		}

		var contSucc, exit *hir.BasicBlock

		for _, s := range d.Succs {
			if s == latch || reachableWithout(s, latch, d) {
				contSucc = s
			} else {
				exit = s
			}
		}

		ctx := &loopCtx{Header: h, BreakTarget: exit}
		if contSucc == latch {
			ctx.ContinueTarget = d
		} else {
			ctx.ContinueTarget = latch
		}

		for _, candidate := range []*hir.BasicBlock{h, d, latch} {
			if lbl := userLabelOf(candidate.Label); lbl != "" {
				ctx.UserLabel = lbl

				break
			}
		}

		headers = append(headers, found{ctx: ctx, domLen: len(fb.dom[h])})
	}

	sort.SliceStable(headers, func(i, j int) bool { return headers[i].domLen < headers[j].domLen })

	for _, f := range headers {
		fb.assignLoopOwnership(f.ctx)
	}
}

// assignLoopOwnership tags every block dominated by ctx's header — except
// blocks dominated by its break target, which lie after the loop — with
// ctx. Callers apply this in ascending dominator-count order so inner loops
// (processed later) overwrite the outer loop's mapping for shared blocks.
func (fb *funcBuilder) assignLoopOwnership(ctx *loopCtx) {
	for _, b := range fb.hirFn.Blocks {
		if !fb.dom[b][ctx.Header] {
			continue
		}

		if ctx.BreakTarget != nil && fb.dom[b][ctx.BreakTarget] {
			continue
		}

		fb.ctxOf[b] = ctx
	}
}

// identifySwitches recovers switch dispatch structure from the block-label
// convention internal/hir/builder.go emits (switch.end created before its
// case/default blocks, which then follow it contiguously in declaration
// order), per spec §4.4's "switch contexts... identified via switch.end/
// case. label conventions" — the chained-CondBr dispatch shape switch
// lowers to has no distinguishing graph feature the way a loop's back edge
// does, so label recognition is the intended mechanism here.
func (fb *funcBuilder) identifySwitches() {
	blocks := fb.hirFn.Blocks

	type found struct {
		ctx    *loopCtx
		domLen int
	}

	var switches []found

	for i, b := range blocks {
		if stemOf(b.Label) != "switch.end" {
			continue
		}

		ctx := &loopCtx{Header: b, IsSwitch: true, BreakTarget: b}

		for j := i + 1; j < len(blocks); j++ {
			stem := stemOf(blocks[j].Label)
			if stem != "switch.case" && stem != "switch.default" {
				break
			}

			ctx.Entries = append(ctx.Entries, blocks[j])
		}

		if len(ctx.Entries) == 0 {
			continue
		}

		minDom := len(fb.dom[ctx.Entries[0]])
		for _, e := range ctx.Entries[1:] {
			if d := len(fb.dom[e]); d < minDom {
				minDom = d
			}
		}

		switches = append(switches, found{ctx: ctx, domLen: minDom})
	}

	sort.SliceStable(switches, func(i, j int) bool { return switches[i].domLen < switches[j].domLen })

	for _, f := range switches {
		fb.assignSwitchOwnership(f.ctx)
	}
}

// assignSwitchOwnership tags every block dominated by any of ctx's case/
// default entry blocks — except ones dominated by ctx.BreakTarget, which
// lie after the switch — with ctx, in the same ascending-dominator-count
// order loops use so nested constructs win ownership of shared blocks.
func (fb *funcBuilder) assignSwitchOwnership(ctx *loopCtx) {
	for _, b := range fb.hirFn.Blocks {
		owned := false

		for _, e := range ctx.Entries {
			if fb.dom[b][e] {
				owned = true

				break
			}
		}

		if !owned {
			continue
		}

		if fb.dom[b][ctx.BreakTarget] {
			continue
		}

		fb.ctxOf[b] = ctx
	}
}

// linkParents wires each discovered loop/switch context to its lexically
// enclosing one (nil at the top level), using the immediate dominator of
// the context's header block: whatever context currently owns that block
// is the parent. `continue` resolution walks this chain to skip past an
// enclosing switch and reach the nearest real loop.
func (fb *funcBuilder) linkParents() {
	seen := make(map[*loopCtx]bool)

	for _, ctx := range fb.ctxOf {
		if seen[ctx] {
			continue
		}

		seen[ctx] = true

		if idom, ok := fb.idom[ctx.Header]; ok && idom != nil {
			if parent, ok := fb.ctxOf[idom]; ok && parent != ctx {
				ctx.Parent = parent
			}
		}
	}
}

func stemOf(label string) string {
	base := label
	if i := indexByte(base, '#'); i >= 0 {
		base = base[:i]
	}

	// Strip a trailing ".N" newBlock repeat-counter suffix, and a trailing
	// "_N" switch-case index, without disturbing the dotted prefix itself.
	if i := lastIndexByte(base, '.'); i >= 0 && isAllDigits(base[i+1:]) {
		base = base[:i]
	}

	if i := lastIndexByte(base, '_'); i >= 0 && isAllDigits(base[i+1:]) {
		base = base[:i]
	}

	return base
}

func userLabelOf(label string) string {
	if i := indexByte(label, '#'); i >= 0 {
		return label[i+1:]
	}

	return ""
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}

	return -1
}

func lastIndexByte(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}

	return -1
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// resolveBreak finds the target block for a break instruction with the
// given optional explicit label, searching outward from owner.
func resolveBreak(owner *loopCtx, label string) *hir.BasicBlock {
	for c := owner; c != nil; c = c.Parent {
		if label == "" || c.UserLabel == label {
			return c.BreakTarget
		}
	}

	return nil
}

// resolveContinue finds the target block for a continue instruction,
// skipping past any enclosing switch context — switches have no loop
// semantics of their own, so an unlabeled `continue` inside one continues
// the nearest real loop.
func resolveContinue(owner *loopCtx, label string) *hir.BasicBlock {
	for c := owner; c != nil; c = c.Parent {
		if c.IsSwitch {
			continue
		}

		if label == "" || c.UserLabel == label {
			return c.ContinueTarget
		}
	}

	return nil
}

// ---- block and instruction lowering ----

func (fb *funcBuilder) lowerBlock(hb *hir.BasicBlock) {
	cur := fb.mirBlockOf[hb]

	for _, instr := range hb.Instructions {
		switch instr.Op {
		case hir.OpBreak:
			target := resolveBreak(fb.ctxOf[hb], instr.Label)
			fb.closeWithGoto(cur, target)

			return
		case hir.OpContinue:
			target := resolveContinue(fb.ctxOf[hb], instr.Label)
			fb.closeWithGoto(cur, target)

			return
		case hir.OpBr:
			cur.Terminator = &GotoTerminator{Target: fb.blockByLabel[instr.Callee]}

			return
		case hir.OpCondBr:
			cond := fb.operand(instr.Operands[0])
			cur.Terminator = &SwitchIntTerminator{
				Discriminant: cond,
				Targets:      []SwitchTarget{{Value: 1, Target: fb.blockByLabel[instr.Callee]}},
				Otherwise:    fb.blockByLabel[instr.Label],
			}

			return
		case hir.OpReturn:
			fb.emitCopyOuts(cur)

			if len(instr.Operands) == 0 {
				cur.Terminator = &ReturnTerminator{}
			} else {
				cur.Terminator = &ReturnTerminator{Operand: fb.lowerReturnOperand(cur, instr.Operands[0])}
			}

			return
		case hir.OpUnreachable:
			cur.Terminator = &UnreachableTerminator{}

			return
		case hir.OpCall:
			cur = fb.lowerCall(cur, instr)
		default:
			fb.lowerSimple(cur, instr)
		}
	}

	if !cur.IsTerminated() {
		cur.Terminator = &UnreachableTerminator{}
	}
}

func (fb *funcBuilder) closeWithGoto(mb *BasicBlock, target *hir.BasicBlock) {
	if target == nil {
		mb.Terminator = &UnreachableTerminator{}

		return
	}

	mb.Terminator = &GotoTerminator{Target: fb.mirBlockOf[target]}
}

// lowerReturnOperand special-cases spec §4.4's return-site closure
// materialization: a Return whose operand is the string-constant closure
// marker internal/hir/builder.go emits builds the environment struct from
// this (the closure's defining) function's own locals and packages it with
// the closure's function reference. cur is the MIR block the Return
// instruction itself lives in; any packaging statements land there.
func (fb *funcBuilder) lowerReturnOperand(cur *BasicBlock, v hir.Value) Operand {
	if c, ok := v.(*hir.Constant); ok && c.Kind == hir.ConstString && c.ValType == hir.KindFunction {
		innerName := c.StrVal

		values := fb.hirMod.ClosureCapturedVarValues[innerName]

		elems := make([]Operand, len(values))
		for i, val := range values {
			elems[i] = fb.operand(val)
		}

		envPlace := fb.newLocal(KindOpaque, innerName+".env")
		cur.Statements = append(cur.Statements, &AssignStmt{Dest: envPlace, RHS: &AggregateRvalue{Kind: AggStruct, Elems: elems}})

		closurePlace := fb.newLocal(KindOpaque, innerName+".closure")
		cur.Statements = append(cur.Statements, &AssignStmt{
			Dest: closurePlace,
			RHS: &AggregateRvalue{Kind: AggStruct, Elems: []Operand{
				&FuncRefOperand{Name: innerName},
				&CopyOperand{Place: envPlace},
			}},
		})

		return &CopyOperand{Place: closurePlace}
	}

	return fb.operand(v)
}

// lowerCall lowers a HIR Call into a MIR Call terminator plus a freshly
// created continuation block, per spec §4.4, rewriting the callee and
// prepending the environment pointer when the call target is a closure
// value reached through a local variable (the call-site half of §4.4's
// closure materialization). It returns the continuation block, which
// becomes the new "current block" for any HIR instructions still to come
// in the same source block.
func (fb *funcBuilder) lowerCall(cur *BasicBlock, instr *hir.Instruction) *BasicBlock {
	calleeName := instr.Callee

	args := make([]Operand, 0, len(instr.Operands)+1)
	if binding, ok := fb.closureByVarName[calleeName]; ok {
		calleeName = binding.InnerName
		args = append(args, &CopyOperand{Place: binding.EnvPlace})
	}

	for _, op := range instr.Operands {
		args = append(args, fb.operand(op))
	}

	resultKind := TranslateKind(instr.ResultType)

	var dest *Place
	if resultKind != KindVoid {
		dest = fb.newLocal(resultKind, "call_result")
		fb.placeOf[instr] = dest
	}

	cont := &BasicBlock{Label: instr.Block.Label + ".cont" + itoa(fb.nextTmp)}
	fb.nextTmp++
	fb.mirFn.Blocks = append(fb.mirFn.Blocks, cont)

	cur.Terminator = &CallTerminator{CalleeName: calleeName, Args: args, Dest: dest, Target: cont}

	// If the callee itself returns a closure (spec §4.4), immediately
	// destructure the packaged {fnRef, env} result so a later call through
	// this result's variable can be rewritten.
	if innerName, ok := fb.hirMod.ClosureReturnedBy[instr.Callee]; ok && dest != nil {
		envPlace := fb.newLocal(KindPointer, "env_of_"+innerName)
		cont.Statements = append(cont.Statements, &AssignStmt{
			Dest: envPlace,
			RHS:  &AggregateRvalue{Kind: AggGetField, Base: &CopyOperand{Place: dest}, FieldIndex: 1, FieldName: "__env"},
		})
		fb.callEnvPlace[instr] = envPlace
	}

	return cont
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	neg := n < 0
	if neg {
		n = -n
	}

	var buf [20]byte

	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}

	if neg {
		i--
		buf[i] = '-'
	}

	return string(buf[i:])
}

// lowerSimple lowers every non-control, non-Call opcode into statements
// appended to mb.
func (fb *funcBuilder) lowerSimple(mb *BasicBlock, instr *hir.Instruction) {
	switch instr.Op {
	case hir.OpAlloca:
		place := fb.newStorageLocal(TranslateKind(fb.allocaValueType(instr)), instr.Label)
		fb.placeOf[instr] = place
		mb.Statements = append(mb.Statements, &StorageLiveStmt{Place: place})

	case hir.OpStore:
		dest := fb.placeFor(instr.Operands[0])
		val := fb.operand(instr.Operands[1])
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: dest, RHS: &UseRvalue{Operand: val}})
		fb.trackClosureBinding(dest, instr.Operands[1])

	case hir.OpLoad:
		// A Load's value is simply the current contents of its place; no
		// MIR statement is needed, downstream operand translation reads
		// the place directly (see operand()).
		fb.placeOf[instr] = fb.placeFor(instr.Operands[0])

	case hir.OpGetField:
		place := fb.newLocal(TranslateKind(instr.ResultType), "")
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: place, RHS: &AggregateRvalue{
			Kind: AggGetField, Base: fb.operand(instr.Operands[0]), FieldName: instr.Label, FieldIndex: instr.FieldIndex,
		}})
		fb.placeOf[instr] = place

	case hir.OpSetField:
		discard := fb.newLocal(KindVoid, "_")
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: discard, RHS: &AggregateRvalue{
			Kind: AggSetField, Base: fb.operand(instr.Operands[0]), FieldName: instr.Label,
			FieldIndex: instr.FieldIndex, Value: fb.operand(instr.Operands[1]),
		}})

	case hir.OpGetElement:
		place := fb.newLocal(TranslateKind(instr.ResultType), "")
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: place, RHS: &AggregateRvalue{
			Kind: AggGetElement, Base: fb.operand(instr.Operands[0]), Index: fb.operand(instr.Operands[1]),
		}})
		fb.placeOf[instr] = place

	case hir.OpSetElement:
		discard := fb.newLocal(KindVoid, "_")
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: discard, RHS: &AggregateRvalue{
			Kind: AggSetElement, Base: fb.operand(instr.Operands[0]), Index: fb.operand(instr.Operands[1]),
			Value: fb.operand(instr.Operands[2]),
		}})

	case hir.OpCast:
		place := fb.newLocal(TranslateKind(instr.ResultType), "")
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: place, RHS: &CastRvalue{
			Operand: fb.operand(instr.Operands[0]), To: TranslateKind(instr.ResultType),
		}})
		fb.placeOf[instr] = place

	case hir.OpAggregate:
		place := fb.newLocal(TranslateKind(instr.ResultType), "")
		elems := make([]Operand, len(instr.Operands))
		for i, op := range instr.Operands {
			elems[i] = fb.operand(op)
		}

		mb.Statements = append(mb.Statements, &AssignStmt{Dest: place, RHS: &AggregateRvalue{Kind: AggArray, Elems: elems}})
		fb.placeOf[instr] = place

	case hir.OpNeg, hir.OpNot:
		place := fb.newLocal(TranslateKind(instr.ResultType), "")
		mb.Statements = append(mb.Statements, &AssignStmt{Dest: place, RHS: &UnaryOpRvalue{
			Op: translateUnOp(instr.Op), Operand: fb.operand(instr.Operands[0]),
		}})
		fb.placeOf[instr] = place

	case hir.OpPhi:
		fb.diags.Warnf(position.Span{}, "unexpected OpPhi reaching MIR generation for %s", instr.Label)

	default:
		if binOp, ok := translateBinOp(instr.Op); ok {
			place := fb.newLocal(TranslateKind(instr.ResultType), "")
			mb.Statements = append(mb.Statements, &AssignStmt{Dest: place, RHS: &BinaryOpRvalue{
				Op: binOp, Left: fb.operand(instr.Operands[0]), Right: fb.operand(instr.Operands[1]),
			}})
			fb.placeOf[instr] = place

			return
		}

		fb.diags.Warnf(position.Span{}, "unsupported HIR opcode %v lowered as no-op", instr.Op)
	}
}

// trackClosureBinding records, when a Store's right-hand side is a call to
// a function known (by spec §4.4's ClosureReturnedBy table) to return a
// closure, that the destination place's variable name now names a closure —
// so a later call through that name rewrites to the real callee.
func (fb *funcBuilder) trackClosureBinding(dest *Place, storedVal hir.Value) {
	if dest.Name == "" {
		return
	}

	callInstr, ok := storedVal.(*hir.Instruction)
	if !ok || callInstr.Op != hir.OpCall {
		return
	}

	innerName, ok := fb.hirMod.ClosureReturnedBy[callInstr.Callee]
	if !ok {
		return
	}

	envPlace, ok := fb.callEnvPlace[callInstr]
	if !ok {
		return
	}

	fb.closureByVarName[dest.Name] = &closureBinding{InnerName: innerName, EnvPlace: envPlace}
}

// allocaValueType recovers the declared type of a var whose only direct
// evidence is its first Store, since OpAlloca's own ResultType is always
// the pointer type per internal/hir/builder.go's lowerVarDecl.
func (fb *funcBuilder) allocaValueType(alloca *hir.Instruction) hir.Kind {
	for _, hb := range fb.hirFn.Blocks {
		for _, instr := range hb.Instructions {
			if instr.Op == hir.OpStore && len(instr.Operands) == 2 && instr.Operands[0] == hir.Value(alloca) {
				return instr.Operands[1].Type()
			}
		}
	}

	return hir.KindAny
}

func (fb *funcBuilder) placeFor(v hir.Value) *Place {
	if instr, ok := v.(*hir.Instruction); ok {
		if p, ok := fb.placeOf[instr]; ok {
			return p
		}
	}

	return fb.newLocal(KindI64, "")
}

func (fb *funcBuilder) operand(v hir.Value) Operand {
	switch val := v.(type) {
	case *hir.Constant:
		return translateConstant(val)
	case *hir.Parameter:
		if p, ok := fb.placeOf[v]; ok {
			return &CopyOperand{Place: p}
		}

		return &ConstantOperand{CKind: ConstUndefined, Type: KindI64}
	case *hir.Instruction:
		if p, ok := fb.placeOf[val]; ok {
			return &CopyOperand{Place: p}
		}

		return &ConstantOperand{CKind: ConstUndefined, Type: KindI64}
	default:
		return &ConstantOperand{CKind: ConstUndefined, Type: KindI64}
	}
}

func translateConstant(c *hir.Constant) Operand {
	out := &ConstantOperand{Type: TranslateKind(c.ValType)}

	switch c.Kind {
	case hir.ConstInt:
		out.CKind, out.IntVal = ConstInt, c.IntVal
	case hir.ConstFloat:
		out.CKind, out.FltVal = ConstFloat, c.FltVal
	case hir.ConstBool:
		out.CKind, out.BoolVal = ConstBool, c.BoolVal
	case hir.ConstString:
		out.CKind, out.StrVal = ConstString, c.StrVal
	case hir.ConstNull:
		out.CKind = ConstNull
	default:
		out.CKind = ConstUndefined
	}

	return out
}

func translateUnOp(op hir.Opcode) UnOp {
	if op == hir.OpNot {
		return UnNot
	}

	return UnNeg
}

func translateBinOp(op hir.Opcode) (BinOp, bool) {
	switch op {
	case hir.OpAdd:
		return BinAdd, true
	case hir.OpSub:
		return BinSub, true
	case hir.OpMul:
		return BinMul, true
	case hir.OpDiv:
		return BinDiv, true
	case hir.OpRem:
		return BinRem, true
	case hir.OpAnd:
		return BinAnd, true
	case hir.OpOr:
		return BinOr, true
	case hir.OpXor:
		return BinXor, true
	case hir.OpShl:
		return BinShl, true
	case hir.OpShr:
		return BinShr, true
	case hir.OpUShr:
		return BinUShr, true
	case hir.OpEq:
		return BinEq, true
	case hir.OpNe:
		return BinNe, true
	case hir.OpLt:
		return BinLt, true
	case hir.OpLe:
		return BinLe, true
	case hir.OpGt:
		return BinGt, true
	case hir.OpGe:
		return BinGe, true
	default:
		return 0, false
	}
}
