// Package teamsdk is a Go client for the teamup API.
//
// Anonymous calls (registration, login, password reset, browsing open teams
// and health checks) hang off SDKClient. Register and Login return a Session
// that carries the session token and exposes the signed-in operations.
//
//	client := teamsdk.NewSDKClient("http://localhost:8080")
//	sess, err := client.Login(ctx, "alice@example.com", "secret")
//	if err != nil {
//		return err
//	}
//	team, err := sess.CreateTeam(ctx, teamsdk.CreateTeamRequest{Name: "Rocket", Domain: "web"})
//
// The wire types in this package are shared with the server handlers.
package teamsdk
