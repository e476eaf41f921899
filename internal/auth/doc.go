// Package auth guards the HTTP API.
//
// Two modes are supported, selected by AUTH_MODE:
//   - "none": every request is anonymous and may write (default)
//   - "local": users live in the users table; browsers log in with a
//     session cookie, API clients send "Authorization: Bearer <token>"
//
// Roles: admin and editor may change the dataset, viewer may only read.
// The username of the authenticated user is the actor recorded on image
// rows; read it with Actor(c).
//
// Wiring in the entrypoint:
//
//	svc := auth.NewService(db.Gorm(), cfg.Auth, log)
//	sessions, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	mw := auth.NewMiddleware(svc, sessions, cfg.Auth)
//	router.Use(sessions.SessionLoadSave(), mw.Handler())
//	api.POST("/images", mw.RequireWrite(), handler)
package auth
