package rpc

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/potential/internal/fault"
	"github.com/danielpatrickdp/potential/internal/params"
	"github.com/danielpatrickdp/potential/internal/potential"
	"github.com/danielpatrickdp/potential/internal/tensor"
)

// #region types
// EvaluateRequest selects a stored potential and the points to evaluate it
// at. VersionID wins over Name when both are set. Adjust and Scale derive a
// potential for this call only; Adjust applies first.
type EvaluateRequest struct {
	Name      string
	VersionID string
	X         tensor.Value
	Adjust    map[string]float64
	Scale     *float64
}

// EvaluateResult is the potential at the requested points, shaped like X.
type EvaluateResult struct {
	Name      string
	VersionID string
	Strength  float64
	Y         tensor.Value
}

// RegionInfo describes one resolved region.
type RegionInfo struct {
	Index    int
	Lower    float64
	Upper    float64
	Domain   string
	Function string
}

// Description summarises a stored potential.
type Description struct {
	Name       string
	VersionID  string
	Strength   float64
	Parameters []params.Entry
	Regions    []RegionInfo
}

// #endregion types

// #region evaluate-codec
func encodeEvaluateRequest(req EvaluateRequest) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"x": valueOf(req.X),
	}
	setString(fields, "name", req.Name)
	setString(fields, "version_id", req.VersionID)
	if len(req.Adjust) > 0 {
		fields["adjust"] = structpb.NewStructValue(numberMap(req.Adjust))
	}
	if req.Scale != nil {
		fields["scale"] = structpb.NewNumberValue(*req.Scale)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeEvaluateRequest(in *structpb.Struct) (EvaluateRequest, error) {
	var req EvaluateRequest
	var err error
	fields := in.GetFields()
	if req.Name, err = stringField(fields, "name"); err != nil {
		return EvaluateRequest{}, err
	}
	if req.VersionID, err = stringField(fields, "version_id"); err != nil {
		return EvaluateRequest{}, err
	}
	x, ok := fields["x"]
	if !ok {
		return EvaluateRequest{}, fault.Config("request is missing x", nil)
	}
	if req.X, err = tensorOf("x", x); err != nil {
		return EvaluateRequest{}, err
	}
	if v, ok := fields["scale"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return EvaluateRequest{}, fault.Config("scale must be a number", nil)
		}
		req.Scale = &n.NumberValue
	}
	if v, ok := fields["adjust"]; ok {
		s, ok := v.GetKind().(*structpb.Value_StructValue)
		if !ok {
			return EvaluateRequest{}, fault.Config("adjust must be a mapping of parameter to number", nil)
		}
		req.Adjust = make(map[string]float64, len(s.StructValue.GetFields()))
		for name, pv := range s.StructValue.GetFields() {
			n, ok := pv.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return EvaluateRequest{}, fault.Config(fmt.Sprintf("adjust.%s must be a number", name), nil)
			}
			req.Adjust[name] = n.NumberValue
		}
	}
	return req, nil
}

func encodeEvaluateResult(res EvaluateResult) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"y":        valueOf(res.Y),
		"strength": structpb.NewNumberValue(res.Strength),
	}
	setString(fields, "name", res.Name)
	setString(fields, "version_id", res.VersionID)
	return &structpb.Struct{Fields: fields}
}

func decodeEvaluateResult(out *structpb.Struct) (EvaluateResult, error) {
	fields := out.GetFields()
	y, ok := fields["y"]
	if !ok {
		return EvaluateResult{}, fmt.Errorf("response is missing y")
	}
	yv, err := tensorOf("y", y)
	if err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{
		Name:      fields["name"].GetStringValue(),
		VersionID: fields["version_id"].GetStringValue(),
		Strength:  fields["strength"].GetNumberValue(),
		Y:         yv,
	}, nil
}

// #endregion evaluate-codec

// #region describe-codec
func describe(name, versionID string, p *potential.Potential) Description {
	d := Description{
		Name:       name,
		VersionID:  versionID,
		Strength:   p.Strength(),
		Parameters: p.Params().All(),
	}
	for _, r := range p.Regions() {
		d.Regions = append(d.Regions, RegionInfo{
			Index:    r.Index(),
			Lower:    r.Lower(),
			Upper:    r.Upper(),
			Domain:   r.DomainSpec(),
			Function: r.FunctionSpec(),
		})
	}
	return d
}

func encodeDescription(d Description) *structpb.Struct {
	order := make([]*structpb.Value, len(d.Parameters))
	values := make(map[string]float64, len(d.Parameters))
	for i, e := range d.Parameters {
		order[i] = structpb.NewStringValue(e.Name)
		values[e.Name] = e.Value
	}
	regions := make([]*structpb.Value, len(d.Regions))
	for i, r := range d.Regions {
		regions[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"index":    structpb.NewNumberValue(float64(r.Index)),
			"lower":    structpb.NewNumberValue(r.Lower),
			"upper":    structpb.NewNumberValue(r.Upper),
			"domain":   structpb.NewStringValue(r.Domain),
			"function": structpb.NewStringValue(r.Function),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":            structpb.NewStringValue(d.Name),
		"version_id":      structpb.NewStringValue(d.VersionID),
		"strength":        structpb.NewNumberValue(d.Strength),
		"parameters":      structpb.NewStructValue(numberMap(values)),
		"parameter_order": structpb.NewListValue(&structpb.ListValue{Values: order}),
		"regions":         structpb.NewListValue(&structpb.ListValue{Values: regions}),
	}}
}

func decodeDescription(out *structpb.Struct) Description {
	fields := out.GetFields()
	d := Description{
		Name:      fields["name"].GetStringValue(),
		VersionID: fields["version_id"].GetStringValue(),
		Strength:  fields["strength"].GetNumberValue(),
	}
	values := fields["parameters"].GetStructValue().GetFields()
	for _, n := range fields["parameter_order"].GetListValue().GetValues() {
		name := n.GetStringValue()
		d.Parameters = append(d.Parameters, params.Entry{Name: name, Value: values[name].GetNumberValue()})
	}
	for _, rv := range fields["regions"].GetListValue().GetValues() {
		rf := rv.GetStructValue().GetFields()
		d.Regions = append(d.Regions, RegionInfo{
			Index:    int(rf["index"].GetNumberValue()),
			Lower:    rf["lower"].GetNumberValue(),
			Upper:    rf["upper"].GetNumberValue(),
			Domain:   rf["domain"].GetStringValue(),
			Function: rf["function"].GetStringValue(),
		})
	}
	return d
}

// #endregion describe-codec

// #region values
func valueOf(v tensor.Value) *structpb.Value {
	if v.IsZero() {
		return structpb.NewNullValue()
	}
	if !v.IsArray() {
		f, _ := v.Float()
		return structpb.NewNumberValue(f)
	}
	xs := v.Floats()
	vals := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		vals[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

// tensorOf accepts a number or a list of numbers. Anything else, including
// numeric strings, is rejected.
func tensorOf(field string, v *structpb.Value) (tensor.Value, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return tensor.Scalar(k.NumberValue), nil
	case *structpb.Value_ListValue:
		elems := k.ListValue.GetValues()
		xs := make([]float64, len(elems))
		for i, e := range elems {
			n, ok := e.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return tensor.Value{}, fault.Config(fmt.Sprintf("%s[%d] is not a number", field, i), nil)
			}
			xs[i] = n.NumberValue
		}
		return tensor.Array(xs), nil
	default:
		return tensor.Value{}, fault.Config(fmt.Sprintf("%s must be a number or a list of numbers", field), nil)
	}
}

func numberMap(m map[string]float64) *structpb.Struct {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make(map[string]*structpb.Value, len(m))
	for _, k := range keys {
		fields[k] = structpb.NewNumberValue(m[k])
	}
	return &structpb.Struct{Fields: fields}
}

func stringField(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fault.Config(key+" must be a string", nil)
	}
	return s.StringValue, nil
}

func setString(fields map[string]*structpb.Value, key, val string) {
	if val != "" {
		fields[key] = structpb.NewStringValue(val)
	}
}

// #endregion values
