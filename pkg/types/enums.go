package types

// Op identifies a transformation operation. Unknown names are rejected when
// a preprocess is defined, not when it executes.
type Op string

// Builtin operations.
const (
	OpRenameColumn     Op = "rename_column"
	OpDropColumns      Op = "drop_columns"
	OpFilterRows       Op = "filter_rows"
	OpFilterOutliers   Op = "filter_outliers"
	OpImputeMissing    Op = "impute_missing"
	OpLabelEncode      Op = "label_encode"
	OpOneHotEncode     Op = "one_hot_encode"
	OpScaleNumeric     Op = "scale_numeric"
	OpLogTransform     Op = "log_transform"
	OpExtractDatetime  Op = "extract_datetime_features"
	OpRemoveDuplicates Op = "remove_duplicates"
	OpBinNumeric       Op = "bin_numeric"
	OpNormalizeText    Op = "normalize_text"
	OpCapOutliers      Op = "cap_outliers"
	OpJoin             Op = "join"
	OpCustom           Op = "custom"
)

var builtinOps = map[Op]bool{
	OpRenameColumn:     true,
	OpDropColumns:      true,
	OpFilterRows:       true,
	OpFilterOutliers:   true,
	OpImputeMissing:    true,
	OpLabelEncode:      true,
	OpOneHotEncode:     true,
	OpScaleNumeric:     true,
	OpLogTransform:     true,
	OpExtractDatetime:  true,
	OpRemoveDuplicates: true,
	OpBinNumeric:       true,
	OpNormalizeText:    true,
	OpCapOutliers:      true,
	OpJoin:             true,
}

// IsBuiltin reports whether the op is one of the registry operations
// (including join). Custom steps carry their own code blob.
func (o Op) IsBuiltin() bool { return builtinOps[o] }

// Dtype names for inferred column types.
const (
	DtypeInteger  = "integer"
	DtypeFloating = "floating"
	DtypeBoolean  = "boolean"
	DtypeString   = "string"
	DtypeDate     = "date"
	DtypeDatetime = "datetime64"
)
