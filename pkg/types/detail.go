package types

// StepDetail records what one executed step actually did. Exactly one of the
// kind-specific fields is set, chosen by Op. Unlike the step configuration,
// a detail holds materialized facts: the fill value an imputation used, the
// category mapping an encoding applied.
type StepDetail struct {
	Op Op `json:"op"`

	Join    *JoinDetail    `json:"join,omitempty"`
	Rename  *RenameDetail  `json:"rename,omitempty"`
	Impute  *ImputeDetail  `json:"impute,omitempty"`
	Label   *LabelDetail   `json:"label,omitempty"`
	OneHot  *OneHotDetail  `json:"one_hot,omitempty"`
	Generic *GenericDetail `json:"generic,omitempty"`
	Custom  *CustomDetail  `json:"custom,omitempty"`
}

// JoinDetail names the concrete snapshots consumed by a join, after any
// copy-on-write duplication.
type JoinDetail struct {
	LeftSnapshotID  string `json:"left_snapshot_id"`
	RightSnapshotID string `json:"right_snapshot_id"`
	How             string `json:"how"`
}

// RenameDetail records a column rename.
type RenameDetail struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ImputeDetail records the fill value actually used, which for mean, median
// and mode strategies depends on the input data.
type ImputeDetail struct {
	Column       string `json:"column"`
	Strategy     string `json:"strategy"`
	ImputedValue string `json:"imputed_value"`
}

// LabelDetail records the category-to-code mapping actually applied.
type LabelDetail struct {
	Column  string         `json:"column"`
	Mapping map[string]int `json:"mapping"`
}

// OneHotDetail records the categories present in the input column.
type OneHotDetail struct {
	Column     string   `json:"column"`
	Categories []string `json:"categories"`
}

// GenericDetail echoes the configuration of steps whose effect is fully
// described by their parameters.
type GenericDetail struct {
	Params map[string]string `json:"params"`
}

// CustomDetail marks a sandboxed user-code step.
type CustomDetail struct {
	CodeHash string `json:"code_hash,omitempty"`
}
