package config

// IsTestMode indicates if the program is running in test mode.
// Tests set this to normalize auto-generated variable names in output.
var IsTestMode = false

// Built-in effect constants. These are the concrete atoms the builtin
// table registers; user programs may introduce more via handlers.
const (
	IOEffectName   = "io"
	ExnEffectName  = "exn"
	DivEffectName  = "div"
	NDetEffectName = "ndet"
)

// Built-in operation names for the io effect.
const (
	PrintlnOpName = "println"
	ReadlnOpName  = "readln"
)

// Built-in base type names.
const (
	IntTypeName    = "Int"
	BoolTypeName   = "Bool"
	StringTypeName = "String"
	UnitTypeName   = "Unit"
	ListTypeName   = "List"
)
