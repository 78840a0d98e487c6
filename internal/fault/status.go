package fault

import (
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the errdetails domain attached to transport errors.
const ErrorDomain = "potential.danielpatrickdp.github.com"

// #region to-status
// ToStatus converts err to a gRPC status error. A *Error in the chain
// supplies the code and an ErrorInfo detail carrying its context; anything
// else becomes codes.Internal.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return status.Error(codes.Internal, err.Error())
	}
	st := status.New(fe.Kind.GRPCCode(), err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(fe.Kind),
		Domain:   ErrorDomain,
		Metadata: fe.metadata(),
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// KindOf extracts the fault kind from a gRPC status error produced by
// ToStatus. ok is false when no ErrorInfo detail is present.
func KindOf(err error) (Kind, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return Kind(info.GetReason()), true
		}
	}
	return "", false
}

func (e *Error) metadata() map[string]string {
	md := map[string]string{}
	if e.Expr != "" {
		md["expression"] = e.Expr
	}
	if e.Param != "" {
		md["parameter"] = e.Param
	}
	if e.Region != NoRegion {
		md["region"] = strconv.Itoa(e.Region)
	}
	if e.Kind == KindDomain {
		md["value"] = strconv.FormatFloat(e.Value, 'g', -1, 64)
		if e.Element >= 0 {
			md["element"] = strconv.Itoa(e.Element)
		}
	}
	return md
}

// #endregion to-status
