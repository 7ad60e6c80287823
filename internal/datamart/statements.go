package datamart

// Dimension tables keep their history across rebuilds, so their DDL is
// IF NOT EXISTS. Fact tables are fully derivable from RAW and are
// recreated whole on every build.

const dimDateDDL = `
CREATE TABLE IF NOT EXISTS DIM_DATE (
    DATE_KEY INTEGER PRIMARY KEY,
    DATE_VALUE DATE NOT NULL,
    YEAR INTEGER,
    QUARTER INTEGER,
    MONTH INTEGER,
    DAY_OF_MONTH INTEGER,
    DAY_NAME VARCHAR(20),
    MONTH_NAME VARCHAR(20),
    IS_WEEKEND BOOLEAN,
    IS_HOLIDAY BOOLEAN,
    FISCAL_YEAR INTEGER,
    FISCAL_QUARTER INTEGER
) CLUSTER BY (DATE_VALUE)`

const dimPatientDDL = `
CREATE TABLE IF NOT EXISTS DIM_PATIENT (
    PATIENT_KEY INTEGER AUTOINCREMENT PRIMARY KEY,
    PATIENT_ID INTEGER NOT NULL,
    FIRST_NAME VARCHAR(100),
    LAST_NAME VARCHAR(100),
    DATE_OF_BIRTH DATE,
    GENDER VARCHAR(10),
    CITY VARCHAR(100),
    STATE VARCHAR(50),
    ZIP_CODE VARCHAR(20),
    INSURANCE_PRIMARY VARCHAR(100),
    PATIENT_STATUS VARCHAR(50),
    REGISTRATION_DATE DATE,
    LIFETIME_VALUE DECIMAL(10,2) DEFAULT 0.00,
    EFFECTIVE_DATE DATE NOT NULL,
    EXPIRATION_DATE DATE,
    IS_CURRENT BOOLEAN DEFAULT TRUE
) CLUSTER BY (PATIENT_ID, IS_CURRENT)`

const dimOfficeDDL = `
CREATE TABLE IF NOT EXISTS DIM_OFFICE (
    OFFICE_KEY INTEGER AUTOINCREMENT PRIMARY KEY,
    OFFICE_ID INTEGER NOT NULL,
    OFFICE_NAME VARCHAR(200),
    COMPANY_ID INTEGER,
    COMPANY_NAME VARCHAR(200),
    REGION VARCHAR(100),
    CITY VARCHAR(100),
    STATE VARCHAR(50),
    MANAGER_NAME VARCHAR(200),
    MONTHLY_TARGET DECIMAL(12,2),
    ANNUAL_TARGET DECIMAL(12,2),
    EFFECTIVE_DATE DATE NOT NULL,
    EXPIRATION_DATE DATE,
    IS_CURRENT BOOLEAN DEFAULT TRUE
) CLUSTER BY (OFFICE_ID, IS_CURRENT)`

const dimEmployeeDDL = `
CREATE TABLE IF NOT EXISTS DIM_EMPLOYEE (
    EMPLOYEE_KEY INTEGER AUTOINCREMENT PRIMARY KEY,
    EMPLOYEE_ID INTEGER NOT NULL,
    FIRST_NAME VARCHAR(100),
    LAST_NAME VARCHAR(100),
    OFFICE_ID INTEGER,
    DEPARTMENT VARCHAR(100),
    POSITION_TITLE VARCHAR(200),
    COMMISSION_RATE DECIMAL(5,4),
    SALES_TARGET DECIMAL(12,2),
    EFFECTIVE_DATE DATE NOT NULL,
    EXPIRATION_DATE DATE,
    IS_CURRENT BOOLEAN DEFAULT TRUE
) CLUSTER BY (EMPLOYEE_ID, IS_CURRENT)`

const dimProductDDL = `
CREATE TABLE IF NOT EXISTS DIM_PRODUCT (
    PRODUCT_KEY INTEGER AUTOINCREMENT PRIMARY KEY,
    ITEM_ID INTEGER NOT NULL,
    ITEM_TYPE_ID INTEGER,
    ITEM_NAME VARCHAR(500),
    CATEGORY VARCHAR(100),
    BRAND VARCHAR(200),
    RETAIL_PRICE DECIMAL(10,2),
    COST_PRICE DECIMAL(10,2),
    MARGIN_PERCENT DECIMAL(5,2),
    IS_ACTIVE BOOLEAN DEFAULT TRUE
) CLUSTER BY (ITEM_ID, ITEM_TYPE_ID)`

const factRevenueDDL = `
CREATE OR REPLACE TABLE FACT_REVENUE_TRANSACTIONS (
    TRANSACTION_KEY INTEGER AUTOINCREMENT PRIMARY KEY,
    TRANSACTION_DATE_KEY INTEGER,
    PATIENT_KEY INTEGER,
    OFFICE_KEY INTEGER,
    EMPLOYEE_KEY INTEGER DEFAULT -1,
    PRODUCT_KEY INTEGER DEFAULT -1,
    TRANSACTION_ID INTEGER,
    ORDER_ID INTEGER,
    TRANSACTION_TYPE VARCHAR(100),
    QUANTITY DECIMAL(10,3),
    RETAIL_AMOUNT DECIMAL(12,2),
    BILLED_AMOUNT DECIMAL(12,2),
    PAID_AMOUNT DECIMAL(12,2),
    PATIENT_PAYMENT DECIMAL(12,2),
    INSURANCE_PAYMENT DECIMAL(12,2),
    ADJUSTMENT_AMOUNT DECIMAL(12,2),
    DISCOUNT_AMOUNT DECIMAL(12,2),
    NET_REVENUE DECIMAL(12,2),
    OUTSTANDING_BALANCE DECIMAL(12,2),
    COMMISSION_AMOUNT DECIMAL(12,2),
    IS_VOID BOOLEAN DEFAULT FALSE
) CLUSTER BY (TRANSACTION_DATE_KEY, OFFICE_KEY)`

const factProductSalesDDL = `
CREATE OR REPLACE TABLE FACT_PRODUCT_SALES (
    SALES_KEY INTEGER AUTOINCREMENT PRIMARY KEY,
    SALE_DATE_KEY INTEGER,
    PATIENT_KEY INTEGER,
    OFFICE_KEY INTEGER,
    EMPLOYEE_KEY INTEGER DEFAULT -1,
    PRODUCT_KEY INTEGER,
    QUANTITY_SOLD DECIMAL(10,3),
    UNIT_RETAIL_PRICE DECIMAL(10,2),
    UNIT_COST_PRICE DECIMAL(10,2),
    GROSS_SALES DECIMAL(12,2),
    DISCOUNT_AMOUNT DECIMAL(12,2),
    NET_SALES DECIMAL(12,2),
    COST_OF_GOODS DECIMAL(12,2),
    GROSS_PROFIT DECIMAL(12,2),
    GROSS_MARGIN_PERCENT DECIMAL(5,2)
) CLUSTER BY (SALE_DATE_KEY, PRODUCT_KEY)`

// dimDateInsert populates the date dimension in one set-based
// statement. Fiscal years start in July. The two placeholders are the
// generator row count and the window start date.
const dimDateInsert = `
INSERT INTO DIM_DATE (DATE_KEY, DATE_VALUE, YEAR, QUARTER, MONTH, DAY_OF_MONTH,
                      DAY_NAME, MONTH_NAME, IS_WEEKEND, IS_HOLIDAY, FISCAL_YEAR, FISCAL_QUARTER)
WITH date_range AS (
    SELECT DATEADD(day, ROW_NUMBER() OVER (ORDER BY NULL) - 1, '%s') as date_val
    FROM TABLE(GENERATOR(ROWCOUNT => %d))
)
SELECT
    TO_NUMBER(TO_CHAR(date_val, 'YYYYMMDD')) as DATE_KEY,
    date_val as DATE_VALUE,
    YEAR(date_val) as YEAR,
    QUARTER(date_val) as QUARTER,
    MONTH(date_val) as MONTH,
    DAY(date_val) as DAY_OF_MONTH,
    DAYNAME(date_val) as DAY_NAME,
    MONTHNAME(date_val) as MONTH_NAME,
    CASE WHEN DAYOFWEEK(date_val) IN (0,6) THEN TRUE ELSE FALSE END as IS_WEEKEND,
    FALSE as IS_HOLIDAY,
    CASE WHEN MONTH(date_val) >= 7 THEN YEAR(date_val) + 1 ELSE YEAR(date_val) END as FISCAL_YEAR,
    CASE WHEN MONTH(date_val) IN (7,8,9) THEN 1
         WHEN MONTH(date_val) IN (10,11,12) THEN 2
         WHEN MONTH(date_val) IN (1,2,3) THEN 3
         ELSE 4 END as FISCAL_QUARTER
FROM date_range`

// dimensionLoad is one SCD pass over a dimension: close current rows
// whose tracked attributes changed in RAW, then insert a fresh current
// row for every natural key without one.
type dimensionLoad struct {
	name      string
	closeSQL  string
	insertSQL string
}

var dimensionLoads = []dimensionLoad{
	{
		name: "DIM_PATIENT",
		closeSQL: `
UPDATE DIM_PATIENT d
SET IS_CURRENT = FALSE, EXPIRATION_DATE = CURRENT_DATE()
WHERE d.IS_CURRENT = TRUE
  AND EXISTS (
      SELECT 1 FROM RAW.DBO_PATIENT r
      WHERE TRY_TO_NUMBER(r."PATIENTID") = d.PATIENT_ID
        AND (COALESCE(r."FIRSTNAME", '') <> COALESCE(d.FIRST_NAME, '')
          OR COALESCE(r."LASTNAME", '') <> COALESCE(d.LAST_NAME, '')
          OR COALESCE(r."CITY", '') <> COALESCE(d.CITY, '')
          OR COALESCE(r."STATE", '') <> COALESCE(d.STATE, '')
          OR COALESCE(r."ZIP", '') <> COALESCE(d.ZIP_CODE, ''))
  )`,
		insertSQL: `
INSERT INTO DIM_PATIENT (PATIENT_ID, FIRST_NAME, LAST_NAME, DATE_OF_BIRTH,
                         GENDER, CITY, STATE, ZIP_CODE, PATIENT_STATUS,
                         REGISTRATION_DATE, EFFECTIVE_DATE, IS_CURRENT)
SELECT DISTINCT
    TRY_TO_NUMBER(r."PATIENTID"),
    r."FIRSTNAME",
    r."LASTNAME",
    TRY_TO_DATE(r."DOB"),
    r."GENDER",
    r."CITY",
    r."STATE",
    r."ZIP",
    'Active',
    TRY_TO_DATE(r."CREATEDDATE"),
    CURRENT_DATE(),
    TRUE
FROM RAW.DBO_PATIENT r
WHERE TRY_TO_NUMBER(r."PATIENTID") IS NOT NULL
  AND NOT EXISTS (
      SELECT 1 FROM DIM_PATIENT d
      WHERE d.PATIENT_ID = TRY_TO_NUMBER(r."PATIENTID") AND d.IS_CURRENT = TRUE
  )`,
	},
	{
		name: "DIM_OFFICE",
		closeSQL: `
UPDATE DIM_OFFICE d
SET IS_CURRENT = FALSE, EXPIRATION_DATE = CURRENT_DATE()
WHERE d.IS_CURRENT = TRUE
  AND EXISTS (
      SELECT 1 FROM RAW.DBO_OFFICE r
      WHERE TRY_TO_NUMBER(r."OFFICEID") = d.OFFICE_ID
        AND (COALESCE(r."OFFICENAME", '') <> COALESCE(d.OFFICE_NAME, '')
          OR COALESCE(r."CITY", '') <> COALESCE(d.CITY, '')
          OR COALESCE(r."STATE", '') <> COALESCE(d.STATE, ''))
  )`,
		insertSQL: `
INSERT INTO DIM_OFFICE (OFFICE_ID, OFFICE_NAME, COMPANY_ID, CITY, STATE,
                        EFFECTIVE_DATE, IS_CURRENT)
SELECT DISTINCT
    TRY_TO_NUMBER(r."OFFICEID"),
    r."OFFICENAME",
    TRY_TO_NUMBER(r."COMPANYID"),
    r."CITY",
    r."STATE",
    CURRENT_DATE(),
    TRUE
FROM RAW.DBO_OFFICE r
WHERE TRY_TO_NUMBER(r."OFFICEID") IS NOT NULL
  AND NOT EXISTS (
      SELECT 1 FROM DIM_OFFICE d
      WHERE d.OFFICE_ID = TRY_TO_NUMBER(r."OFFICEID") AND d.IS_CURRENT = TRUE
  )`,
	},
	{
		name: "DIM_EMPLOYEE",
		closeSQL: `
UPDATE DIM_EMPLOYEE d
SET IS_CURRENT = FALSE, EXPIRATION_DATE = CURRENT_DATE()
WHERE d.IS_CURRENT = TRUE
  AND EXISTS (
      SELECT 1 FROM RAW.DBO_EMPLOYEE r
      WHERE TRY_TO_NUMBER(r."EMPLOYEEID") = d.EMPLOYEE_ID
        AND (COALESCE(r."FIRSTNAME", '') <> COALESCE(d.FIRST_NAME, '')
          OR COALESCE(r."LASTNAME", '') <> COALESCE(d.LAST_NAME, '')
          OR COALESCE(TRY_TO_NUMBER(r."OFFICEID"), -1) <> COALESCE(d.OFFICE_ID, -1))
  )`,
		insertSQL: `
INSERT INTO DIM_EMPLOYEE (EMPLOYEE_ID, FIRST_NAME, LAST_NAME, OFFICE_ID,
                          EFFECTIVE_DATE, IS_CURRENT)
SELECT DISTINCT
    TRY_TO_NUMBER(r."EMPLOYEEID"),
    r."FIRSTNAME",
    r."LASTNAME",
    TRY_TO_NUMBER(r."OFFICEID"),
    CURRENT_DATE(),
    TRUE
FROM RAW.DBO_EMPLOYEE r
WHERE TRY_TO_NUMBER(r."EMPLOYEEID") IS NOT NULL
  AND NOT EXISTS (
      SELECT 1 FROM DIM_EMPLOYEE d
      WHERE d.EMPLOYEE_ID = TRY_TO_NUMBER(r."EMPLOYEEID") AND d.IS_CURRENT = TRUE
  )`,
	},
	{
		// Products carry no effective-date history; new item ids are
		// appended and existing rows are left alone.
		name: "DIM_PRODUCT",
		insertSQL: `
INSERT INTO DIM_PRODUCT (ITEM_ID, ITEM_TYPE_ID, ITEM_NAME, RETAIL_PRICE, COST_PRICE, IS_ACTIVE)
SELECT DISTINCT
    TRY_TO_NUMBER(r."ITEMID"),
    TRY_TO_NUMBER(r."ITEMTYPEID"),
    r."ITEMNAME",
    TRY_TO_NUMBER(r."RETAILPRICE"),
    TRY_TO_NUMBER(r."COSTPRICE"),
    TRUE
FROM RAW.DBO_ITEM r
WHERE TRY_TO_NUMBER(r."ITEMID") IS NOT NULL
  AND NOT EXISTS (
      SELECT 1 FROM DIM_PRODUCT d
      WHERE d.ITEM_ID = TRY_TO_NUMBER(r."ITEMID")
  )`,
	},
}

// Fact loads left-join RAW transactions to the current dimension rows;
// a join that resolves nothing lands on the -1 sentinel key.
var factLoads = map[string]string{
	"FACT_REVENUE_TRANSACTIONS": `
INSERT INTO FACT_REVENUE_TRANSACTIONS (
    TRANSACTION_DATE_KEY, PATIENT_KEY, OFFICE_KEY, TRANSACTION_ID,
    TRANSACTION_TYPE, RETAIL_AMOUNT, PAID_AMOUNT, NET_REVENUE, IS_VOID
)
SELECT
    TO_NUMBER(TO_CHAR(TRY_TO_DATE(pos."TRANSACTIONDATE"), 'YYYYMMDD')),
    COALESCE(p.PATIENT_KEY, -1),
    COALESCE(o.OFFICE_KEY, -1),
    TRY_TO_NUMBER(pos."TRANSACTIONID"),
    'POS Transaction',
    TRY_TO_NUMBER(pos."AMOUNT"),
    TRY_TO_NUMBER(pos."AMOUNT"),
    TRY_TO_NUMBER(pos."AMOUNT"),
    COALESCE(TRY_TO_BOOLEAN(pos."ISVOID"), FALSE)
FROM RAW.DBO_POSTRANSACTION pos
LEFT JOIN DIM_PATIENT p ON TRY_TO_NUMBER(pos."PATIENTID") = p.PATIENT_ID AND p.IS_CURRENT = TRUE
LEFT JOIN DIM_OFFICE o ON TRY_TO_NUMBER(pos."OFFICEID") = o.OFFICE_ID AND o.IS_CURRENT = TRUE
WHERE TRY_TO_DATE(pos."TRANSACTIONDATE") IS NOT NULL
  AND TRY_TO_NUMBER(pos."AMOUNT") IS NOT NULL`,

	"FACT_PRODUCT_SALES": `
INSERT INTO FACT_PRODUCT_SALES (
    SALE_DATE_KEY, PATIENT_KEY, OFFICE_KEY, PRODUCT_KEY,
    QUANTITY_SOLD, UNIT_RETAIL_PRICE, UNIT_COST_PRICE,
    GROSS_SALES, NET_SALES, COST_OF_GOODS, GROSS_PROFIT
)
SELECT
    TO_NUMBER(TO_CHAR(TRY_TO_DATE(oi."ORDERDATE"), 'YYYYMMDD')),
    COALESCE(p.PATIENT_KEY, -1),
    COALESCE(o.OFFICE_KEY, -1),
    COALESCE(pr.PRODUCT_KEY, -1),
    TRY_TO_NUMBER(oi."QUANTITY"),
    pr.RETAIL_PRICE,
    pr.COST_PRICE,
    TRY_TO_NUMBER(oi."QUANTITY") * COALESCE(pr.RETAIL_PRICE, 0),
    TRY_TO_NUMBER(oi."QUANTITY") * COALESCE(pr.RETAIL_PRICE, 0),
    TRY_TO_NUMBER(oi."QUANTITY") * COALESCE(pr.COST_PRICE, 0),
    TRY_TO_NUMBER(oi."QUANTITY") * (COALESCE(pr.RETAIL_PRICE, 0) - COALESCE(pr.COST_PRICE, 0))
FROM RAW.DBO_ORDERITEM oi
LEFT JOIN DIM_PRODUCT pr ON TRY_TO_NUMBER(oi."ITEMID") = pr.ITEM_ID
LEFT JOIN DIM_PATIENT p ON TRY_TO_NUMBER(oi."PATIENTID") = p.PATIENT_ID AND p.IS_CURRENT = TRUE
LEFT JOIN DIM_OFFICE o ON TRY_TO_NUMBER(oi."OFFICEID") = o.OFFICE_ID AND o.IS_CURRENT = TRUE
WHERE TRY_TO_DATE(oi."ORDERDATE") IS NOT NULL`,
}

var views = map[string]string{
	"VW_REVENUE_ANALYTICS": `
CREATE OR REPLACE VIEW VW_REVENUE_ANALYTICS AS
SELECT
    d.DATE_VALUE,
    d.YEAR,
    d.MONTH,
    d.QUARTER,
    o.OFFICE_NAME,
    o.REGION,
    e.FIRST_NAME || ' ' || e.LAST_NAME AS EMPLOYEE_NAME,
    p.FIRST_NAME || ' ' || p.LAST_NAME AS PATIENT_NAME,
    pr.ITEM_NAME,
    pr.CATEGORY,
    f.TRANSACTION_TYPE,
    f.QUANTITY,
    f.RETAIL_AMOUNT,
    f.BILLED_AMOUNT,
    f.PAID_AMOUNT,
    f.NET_REVENUE,
    f.OUTSTANDING_BALANCE,
    f.COMMISSION_AMOUNT
FROM FACT_REVENUE_TRANSACTIONS f
JOIN DIM_DATE d ON f.TRANSACTION_DATE_KEY = d.DATE_KEY
LEFT JOIN DIM_OFFICE o ON f.OFFICE_KEY = o.OFFICE_KEY
LEFT JOIN DIM_EMPLOYEE e ON f.EMPLOYEE_KEY = e.EMPLOYEE_KEY
LEFT JOIN DIM_PATIENT p ON f.PATIENT_KEY = p.PATIENT_KEY
LEFT JOIN DIM_PRODUCT pr ON f.PRODUCT_KEY = pr.PRODUCT_KEY
WHERE f.IS_VOID = FALSE`,

	"VW_EXECUTIVE_SUMMARY": `
CREATE OR REPLACE VIEW VW_EXECUTIVE_SUMMARY AS
SELECT
    d.YEAR,
    d.QUARTER,
    o.REGION,
    COUNT(DISTINCT f.PATIENT_KEY) as UNIQUE_PATIENTS,
    COUNT(f.TRANSACTION_KEY) as TOTAL_TRANSACTIONS,
    SUM(f.RETAIL_AMOUNT) as GROSS_REVENUE,
    SUM(f.NET_REVENUE) as NET_REVENUE,
    SUM(f.OUTSTANDING_BALANCE) as TOTAL_AR,
    AVG(f.NET_REVENUE) as AVG_TRANSACTION_VALUE
FROM FACT_REVENUE_TRANSACTIONS f
JOIN DIM_DATE d ON f.TRANSACTION_DATE_KEY = d.DATE_KEY
LEFT JOIN DIM_OFFICE o ON f.OFFICE_KEY = o.OFFICE_KEY
WHERE f.IS_VOID = FALSE
GROUP BY d.YEAR, d.QUARTER, o.REGION`,

	"VW_PRODUCT_PERFORMANCE": `
CREATE OR REPLACE VIEW VW_PRODUCT_PERFORMANCE AS
SELECT
    d.YEAR,
    d.MONTH,
    pr.ITEM_NAME,
    pr.CATEGORY,
    pr.BRAND,
    SUM(f.QUANTITY_SOLD) as UNITS_SOLD,
    SUM(f.NET_SALES) as NET_SALES,
    SUM(f.GROSS_PROFIT) as GROSS_PROFIT,
    CASE WHEN SUM(f.NET_SALES) > 0
         THEN ROUND(SUM(f.GROSS_PROFIT) / SUM(f.NET_SALES) * 100, 2)
         ELSE 0 END as MARGIN_PERCENT
FROM FACT_PRODUCT_SALES f
JOIN DIM_DATE d ON f.SALE_DATE_KEY = d.DATE_KEY
LEFT JOIN DIM_PRODUCT pr ON f.PRODUCT_KEY = pr.PRODUCT_KEY
GROUP BY d.YEAR, d.MONTH, pr.ITEM_NAME, pr.CATEGORY, pr.BRAND`,
}
