package service

import "context"

// Actor is the authenticated caller of an operation.
type Actor struct {
	Username string
	Admin    bool
}

// Anonymous acts for requests when security is disabled.
var Anonymous = Actor{Username: "anonymous"}

// Authorizer decides whether an actor may change a pipeline.
type Authorizer interface {
	CanEditPipeline(ctx context.Context, actor Actor, pipeline string) bool
}

// AdminAuthorizer lets administrators edit every pipeline. With security
// disabled everyone is an administrator.
type AdminAuthorizer struct {
	SecurityEnabled bool
}

func (a AdminAuthorizer) CanEditPipeline(_ context.Context, actor Actor, _ string) bool {
	return !a.SecurityEnabled || actor.Admin
}
