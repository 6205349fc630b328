// Package ir defines the intermediate representation that the corpus,
// scheduler and minimizer operate on. It is a deliberately small stand-in
// for the real operation catalogue and lifter (spec.md §1 lists those as
// external collaborators): enough structure to let reducers rewrite programs
// and the corpus hash/store them, without encoding actual JS semantics.
package ir

// Kind classifies how an Instruction participates in block structure.
type Kind int

const (
	// Simple instructions carry no block semantics.
	Simple Kind = iota
	// BlockBegin opens a BlockGroup; it is matched by a later BlockEnd.
	BlockBegin
	// BlockEnd closes the nearest open BlockGroup.
	BlockEnd
	// NopKind is a structurally inert placeholder used by the minimizer.
	NopKind
)

// BlockClass groups the matching begin/end pairs that BlockReducer (§4.4.2)
// treats with the same escalation strategy.
type BlockClass int

const (
	NotABlock BlockClass = iota
	LoopBlock
	TryCatchFinallyBlock
	CodeStringBlock
	IfBlock
	WithBlock
	FunctionBlock
	ClassBlock
	PlainBlock
)

// OpDef is static metadata about an operation. Real engines derive this from
// a generated catalogue; here it is a small literal table covering the op
// names spec.md's worked examples name directly.
type OpDef struct {
	Name       string
	Kind       Kind
	Class      BlockClass
	NumOutputs int
	// MinInputs is the statically required minimum input arity.
	// Variadic ops may carry more.
	MinInputs  int
	IsVariadic bool
	// Guardable ops support a "guarded" flag (e.g. optional chaining).
	Guardable bool
	// InnerOutputs is how many outputs the block body's head (e.g. a loop
	// counter or a catch binding) introduces inside its own scope.
	InnerOutputs int
}

// Registry of ops this repository knows about. Loaders of a real op
// catalogue would populate this table generatively; it is kept literal here
// because the catalogue itself is out of scope (spec.md §1).
var opTable = map[string]OpDef{
	"LoadInt":              {Name: "LoadInt", Kind: Simple, NumOutputs: 1},
	"LoadString":           {Name: "LoadString", Kind: Simple, NumOutputs: 1},
	"LoadBuiltin":          {Name: "LoadBuiltin", Kind: Simple, NumOutputs: 1},
	"LoadUndefined":        {Name: "LoadUndefined", Kind: Simple, NumOutputs: 1},
	"Add":                  {Name: "Add", Kind: Simple, NumOutputs: 1, MinInputs: 2},
	"GetProperty":          {Name: "GetProperty", Kind: Simple, NumOutputs: 1, MinInputs: 1, Guardable: true},
	"GetElement":           {Name: "GetElement", Kind: Simple, NumOutputs: 1, MinInputs: 2, Guardable: true},
	"Reassign":             {Name: "Reassign", Kind: Simple, NumOutputs: 0, MinInputs: 2},
	"Return":               {Name: "Return", Kind: Simple, NumOutputs: 0, MinInputs: 1},
	"Throw":                {Name: "Throw", Kind: Simple, NumOutputs: 0, MinInputs: 1},
	"Break":                {Name: "Break", Kind: Simple, NumOutputs: 0},
	"Continue":             {Name: "Continue", Kind: Simple, NumOutputs: 0},
	"CallFunction":         {Name: "CallFunction", Kind: Simple, NumOutputs: 1, MinInputs: 1, IsVariadic: true, Guardable: true},
	"CallMethod":           {Name: "CallMethod", Kind: Simple, NumOutputs: 1, MinInputs: 1, IsVariadic: true, Guardable: true},
	"CallSuperConstructor":  {Name: "CallSuperConstructor", Kind: Simple, NumOutputs: 0, IsVariadic: true},
	"Construct":            {Name: "Construct", Kind: Simple, NumOutputs: 1, MinInputs: 1, IsVariadic: true},
	"CreateArray":          {Name: "CreateArray", Kind: Simple, NumOutputs: 1, IsVariadic: true},
	"CreateArrayWithSpread": {Name: "CreateArrayWithSpread", Kind: Simple, NumOutputs: 1, IsVariadic: true},
	"CreateTemplateString":  {Name: "CreateTemplateString", Kind: Simple, NumOutputs: 1, IsVariadic: true},
	"DestructObject":       {Name: "DestructObject", Kind: Simple, MinInputs: 1, IsVariadic: true},
	"DestructArray":        {Name: "DestructArray", Kind: Simple, MinInputs: 1, IsVariadic: true},
	"Nop":                  {Name: "Nop", Kind: NopKind},

	"BeginPlainFunction": {Name: "BeginPlainFunction", Kind: BlockBegin, Class: FunctionBlock, NumOutputs: 1, IsVariadic: true},
	"EndPlainFunction":   {Name: "EndPlainFunction", Kind: BlockEnd, Class: FunctionBlock},
	"BeginGenerator":      {Name: "BeginGenerator", Kind: BlockBegin, Class: FunctionBlock, NumOutputs: 1, IsVariadic: true},
	"EndGenerator":        {Name: "EndGenerator", Kind: BlockEnd, Class: FunctionBlock},
	"BeginAsync":          {Name: "BeginAsync", Kind: BlockBegin, Class: FunctionBlock, NumOutputs: 1, IsVariadic: true},
	"EndAsync":            {Name: "EndAsync", Kind: BlockEnd, Class: FunctionBlock},
	"BeginAsyncGenerator": {Name: "BeginAsyncGenerator", Kind: BlockBegin, Class: FunctionBlock, NumOutputs: 1, IsVariadic: true},
	"EndAsyncGenerator":   {Name: "EndAsyncGenerator", Kind: BlockEnd, Class: FunctionBlock},
	"BeginArrow":          {Name: "BeginArrow", Kind: BlockBegin, Class: FunctionBlock, NumOutputs: 1, IsVariadic: true},
	"EndArrow":            {Name: "EndArrow", Kind: BlockEnd, Class: FunctionBlock},

	"BeginRepeatLoop": {Name: "BeginRepeatLoop", Kind: BlockBegin, Class: LoopBlock, InnerOutputs: 1},
	"EndRepeatLoop":   {Name: "EndRepeatLoop", Kind: BlockEnd, Class: LoopBlock},
	"BeginForLoop":    {Name: "BeginForLoop", Kind: BlockBegin, Class: LoopBlock, InnerOutputs: 1},
	"EndForLoop":      {Name: "EndForLoop", Kind: BlockEnd, Class: LoopBlock},
	"BeginWhileLoop":  {Name: "BeginWhileLoop", Kind: BlockBegin, Class: LoopBlock, MinInputs: 1},
	"EndWhileLoop":    {Name: "EndWhileLoop", Kind: BlockEnd, Class: LoopBlock},
	"BeginDoWhileLoop": {Name: "BeginDoWhileLoop", Kind: BlockBegin, Class: LoopBlock},
	"EndDoWhileLoop":   {Name: "EndDoWhileLoop", Kind: BlockEnd, Class: LoopBlock, MinInputs: 1},

	"BeginTry":     {Name: "BeginTry", Kind: BlockBegin, Class: TryCatchFinallyBlock},
	"BeginCatch":   {Name: "BeginCatch", Kind: BlockBegin, Class: TryCatchFinallyBlock, InnerOutputs: 1},
	"BeginFinally": {Name: "BeginFinally", Kind: BlockBegin, Class: TryCatchFinallyBlock},
	"EndTryCatch":  {Name: "EndTryCatch", Kind: BlockEnd, Class: TryCatchFinallyBlock},

	"BeginCodeString": {Name: "BeginCodeString", Kind: BlockBegin, Class: CodeStringBlock, NumOutputs: 1},
	"EndCodeString":   {Name: "EndCodeString", Kind: BlockEnd, Class: CodeStringBlock},

	"BeginIf":   {Name: "BeginIf", Kind: BlockBegin, Class: IfBlock, MinInputs: 1},
	"BeginElse": {Name: "BeginElse", Kind: BlockBegin, Class: IfBlock},
	"EndIf":     {Name: "EndIf", Kind: BlockEnd, Class: IfBlock},

	"BeginWith": {Name: "BeginWith", Kind: BlockBegin, Class: WithBlock, MinInputs: 1},
	"EndWith":   {Name: "EndWith", Kind: BlockEnd, Class: WithBlock},

	"BeginClass": {Name: "BeginClass", Kind: BlockBegin, Class: ClassBlock, NumOutputs: 1},
	"EndClass":   {Name: "EndClass", Kind: BlockEnd, Class: ClassBlock},

	"BeginBlock": {Name: "BeginBlock", Kind: BlockBegin, Class: PlainBlock},
	"EndBlock":   {Name: "EndBlock", Kind: BlockEnd, Class: PlainBlock},
}

// LookupOp returns the static definition for a named op. Unknown ops are
// treated as zero-output simple instructions -- callers that need a strict
// catalogue should check the second return value.
func LookupOp(name string) (OpDef, bool) {
	def, ok := opTable[name]
	return def, ok
}

// MustLookupOp panics on an unknown op; used where the caller has already
// validated the instruction came from this catalogue.
func MustLookupOp(name string) OpDef {
	def, ok := opTable[name]
	if !ok {
		panic("ir: unknown op " + name)
	}
	return def
}

// RegisterOp installs or overrides an op definition. Exposed so that
// higher layers (or tests) can extend the catalogue without modifying this
// package, mirroring how a generated catalogue would be layered on top.
func RegisterOp(def OpDef) {
	opTable[def.Name] = def
}
