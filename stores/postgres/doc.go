// Package postgres implements the authcore store interfaces on PostgreSQL
// via the pgx stdlib driver. Lockout increments and backup-code
// consumption are single UPDATE statements, so they stay atomic under
// concurrent attempts without advisory locks. Backup codes and trusted
// devices live in side tables rather than serialized columns.
package postgres
