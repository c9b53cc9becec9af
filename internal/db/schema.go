package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE (append-only chat turns with extracted metadata)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS messages ON conversation TYPE array<object>;
    DEFINE FIELD IF NOT EXISTS messages.*.role ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS messages.*.content ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS docs ON conversation TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_user_updated ON conversation FIELDS user_id, updated_at;

    -- ==========================================================================
    -- DIARY TABLE
    -- ==========================================================================
    -- diary_date is local midnight of the calendar day the entry is filed under.
    DEFINE TABLE IF NOT EXISTS diary SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON diary TYPE string;
    DEFINE FIELD IF NOT EXISTS diary_date ON diary TYPE datetime;
    DEFINE FIELD IF NOT EXISTS diary ON diary TYPE string;
    DEFINE FIELD IF NOT EXISTS emotion ON diary TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON diary TYPE datetime DEFAULT time::now();

    -- One diary per user and day; concurrent writers lose on this index.
    DEFINE INDEX IF NOT EXISTS diary_user_date ON diary FIELDS user_id, diary_date UNIQUE;

    -- ==========================================================================
    -- USER SETTING TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user_setting SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON user_setting TYPE string;
    DEFINE FIELD IF NOT EXISTS diary_time ON user_setting TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS updated_at ON user_setting TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS user_setting_user ON user_setting FIELDS user_id UNIQUE;

    -- ==========================================================================
    -- USER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS password_hash ON user TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON user TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS user_user_id ON user FIELDS user_id UNIQUE;
`
