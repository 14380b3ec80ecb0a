// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

// Package auth provides the security-critical core of simpleauth:
// session lifecycle, the selector/verifier password-reset scheme, and
// credential verification.
//
// # Domain Types
//
// Domain types (User, Session, ResetToken) should be created using their
// respective constructors:
//   - NewUser - creates a User with a validated email and password hash
//   - NewSession - creates a Session with a fresh random token
//   - NewResetToken - creates a ResetToken with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - credential verification and session start/resume/terminate
//   - PasswordResetService - the full reset-token flow
//   - TokenCleanup - periodic sweep of expired reset tokens
//
// Services are created with New*Service constructors that validate
// dependencies.
package auth
