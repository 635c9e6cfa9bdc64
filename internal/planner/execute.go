package planner

import (
	"dataapi/internal/dberror"
	"dataapi/internal/policy"
	"dataapi/internal/sqltype"
)

// ExecuteQueryStructure is the model of one stored-procedure call. The
// procedure's declared parameters are resolved against the request payload
// and config-declared defaults; ProcedureParams maps each declared name to
// its parameter token in declaration order.
type ExecuteQueryStructure struct {
	BaseQueryStructure

	Procedure       string
	ParameterNames  []string
	ProcedureParams map[string]string
}

// NewExecuteQuery resolves every declared procedure parameter: request
// values win over config defaults, and a parameter with neither is an
// error naming the parameter.
func NewExecuteQuery(opts MutationOptions) (*ExecuteQueryStructure, error) {
	proc, ok := opts.Provider.StoredProcedureDefinition(opts.Entity)
	if !ok {
		return nil, dberror.NewBadRequestf("entity %s is not backed by a stored procedure", opts.Entity)
	}

	counter := opts.Counter
	if counter == nil {
		counter = NewCounter()
	}
	params := opts.Parameters
	if params == nil {
		params = make(map[string]Parameter)
	}
	q := &ExecuteQueryStructure{
		BaseQueryStructure: BaseQueryStructure{
			Provider:        opts.Provider,
			Resolver:        opts.Resolver,
			Translator:      opts.Translator,
			EntityName:      opts.Entity,
			Object:          proc.Object,
			Parameters:      params,
			DevelopmentMode: opts.DevelopmentMode,
			counter:         counter,
			policyClauses:   make(map[policy.Operation]string),
		},
		Procedure:       proc.Object.FullName(),
		ProcedureParams: make(map[string]string, len(proc.Parameters)),
	}

	for _, declared := range proc.Parameters {
		value, present := opts.Input[declared.Name]
		if !present {
			if !declared.HasConfigDefault {
				return nil, dberror.NewBadRequestf("procedure parameter %s is required and no default is configured", declared.Name)
			}
			value = declared.ConfigDefault
		}
		kind := declared.Kind
		if kind == sqltype.KindString && declared.DataType != "" {
			kind = sqltype.MapColumnType(declared.DataType)
		}
		if value != nil {
			coerced, err := sqltype.CoerceValue(kind, value)
			if err != nil {
				if opts.DevelopmentMode {
					return nil, dberror.WrapBadRequest(err, "value is not valid for procedure parameter "+declared.Name)
				}
				return nil, dberror.NewBadRequestf("invalid value for procedure parameter %s", declared.Name)
			}
			value = coerced
		}
		name := counter.NextParam()
		params[name] = Parameter{Value: value, Kind: kind}
		q.ParameterNames = append(q.ParameterNames, declared.Name)
		q.ProcedureParams[declared.Name] = "@" + name
	}
	return q, nil
}
