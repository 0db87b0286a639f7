package postgres

const (
	queryUpsertUser = `
INSERT INTO users (name, email)
VALUES (:name, :email)
ON CONFLICT (name) DO UPDATE SET email = EXCLUDED.email
RETURNING id`

	queryGetUserByName = `
SELECT id, name, email, created_at
FROM users
    WHERE name = $1`

	queryListUsers = `
SELECT id, name, email, created_at
FROM users
ORDER BY name`

	queryInsertAttendance = `
INSERT INTO attendance (id, user_id, identity, camera_id, confidence, timestamp, day_key)
VALUES (:id, NULLIF(:user_id, 0), :identity, :camera_id, :confidence, :timestamp, :day_key)`

	queryIdentitiesForDay = `
SELECT identity
FROM attendance
    WHERE day_key = $1
ORDER BY identity`

	queryAttendanceForDay = `
SELECT id, COALESCE(user_id, 0) AS user_id, identity, camera_id, confidence, timestamp, day_key
FROM attendance
    WHERE day_key = $1
ORDER BY timestamp`

	queryInsertUnauthorized = `
INSERT INTO unauthorized_access (id, camera_id, confidence, image_path, timestamp, day_key)
VALUES (:id, :camera_id, :confidence, :image_path, :timestamp, :day_key)`

	queryUnauthorizedForDay = `
SELECT id, camera_id, confidence, image_path, timestamp, day_key
FROM unauthorized_access
    WHERE day_key = $1
ORDER BY timestamp`

	queryRefreshAnalytics = `
INSERT INTO analytics (day_key, attendance_count, unauthorized_count, average_confidence, updated_at)
SELECT $1::text,
       (SELECT COUNT(*) FROM attendance WHERE day_key = $1::text),
       (SELECT COUNT(*) FROM unauthorized_access WHERE day_key = $1::text),
       (SELECT COALESCE(AVG(confidence), 0) FROM attendance WHERE day_key = $1::text),
       NOW()
ON CONFLICT (day_key) DO UPDATE SET
    attendance_count = EXCLUDED.attendance_count,
    unauthorized_count = EXCLUDED.unauthorized_count,
    average_confidence = EXCLUDED.average_confidence,
    updated_at = NOW()
RETURNING day_key, attendance_count, unauthorized_count, average_confidence`

	queryGetAnalytics = `
SELECT day_key, attendance_count, unauthorized_count, average_confidence
FROM analytics
    WHERE day_key = $1`
)
