package domain

// RoleAdmin is the only role allowed to trigger a broadcast.
const RoleAdmin = "admin"
